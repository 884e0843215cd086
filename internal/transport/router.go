package transport

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// RequestFunc answers a request.
type RequestFunc func(ctx context.Context, body *structpb.Struct) (*structpb.Struct, error)

// MessageFunc consumes a one-way message.
type MessageFunc func(ctx context.Context, body *structpb.Struct)

// Router dispatches by method name. It is not safe to modify once the
// channel serves.
type Router struct {
	requests map[string]RequestFunc
	messages map[string]MessageFunc
}

var _ Handler = (*Router)(nil)

func NewRouter() *Router {
	return &Router{
		requests: make(map[string]RequestFunc),
		messages: make(map[string]MessageFunc),
	}
}

func (r *Router) OnRequest(method string, fn RequestFunc) *Router {
	r.requests[method] = fn
	return r
}

func (r *Router) OnMessage(method string, fn MessageFunc) *Router {
	r.messages[method] = fn
	return r
}

func (r *Router) HandleRequest(ctx context.Context, method string, body *structpb.Struct) (*structpb.Struct, error) {
	fn, ok := r.requests[method]
	if !ok {
		return nil, fmt.Errorf("%s: %w", method, ErrUnknownMethod)
	}
	if body == nil {
		body = &structpb.Struct{}
	}
	return fn(ctx, body)
}

func (r *Router) HandleMessage(ctx context.Context, method string, body *structpb.Struct) {
	if fn, ok := r.messages[method]; ok {
		if body == nil {
			body = &structpb.Struct{}
		}
		fn(ctx, body)
	}
}
