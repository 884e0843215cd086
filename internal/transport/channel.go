package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrRequestPending is returned when a request is issued while another
	// one still waits for its response.
	ErrRequestPending = errors.New("a request is already pending on this channel")
	// ErrClosed is returned once the channel is closed.
	ErrClosed = errors.New("channel closed")
	// ErrUnknownMethod is returned for requests nobody handles.
	ErrUnknownMethod = errors.New("unknown method")
)

// RemoteError is a handler failure reported by the other end.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Method, e.Message)
}

const (
	kindRequest  = "request"
	kindResponse = "response"
	kindMessage  = "message"
)

// Handler serves what the other end sends. Requests are handled on their
// own goroutine so that the channel keeps reading responses meanwhile.
type Handler interface {
	HandleRequest(ctx context.Context, method string, body *structpb.Struct) (*structpb.Struct, error)
	HandleMessage(ctx context.Context, method string, body *structpb.Struct)
}

type reply struct {
	body *structpb.Struct
	err  error
}

// Channel exchanges requests, responses and one-way messages over a
// connection. At most one outgoing request is in flight at a time.
type Channel struct {
	conn    net.Conn
	handler Handler
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending chan reply
	method  string

	closeOnce sync.Once
	done      chan struct{}
}

// NewChannel wraps conn. Serve must run for anything to be received.
func NewChannel(conn net.Conn, handler Handler, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		conn:    conn,
		handler: handler,
		logger:  logger.With(zap.String("remote", conn.RemoteAddr().String())),
		done:    make(chan struct{}),
	}
}

// Done is closed when the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Serve reads frames until the connection fails or ctx is cancelled. It
// returns nil when the other end hangs up.
func (c *Channel) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	defer c.Close()

	for {
		frame, err := ReadFrame(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || c.closed() {
				return nil
			}
			return fmt.Errorf("serve channel: %w", err)
		}
		kind, method, body, msg := unwrap(frame)
		switch kind {
		case kindRequest:
			go c.serveRequest(ctx, method, body)
		case kindResponse:
			c.complete(method, body, msg)
		case kindMessage:
			if c.handler != nil {
				c.handler.HandleMessage(ctx, method, body)
			}
		default:
			c.logger.Warn("dropping frame", zap.String("type", kind), zap.String("method", method))
		}
	}
}

func (c *Channel) serveRequest(ctx context.Context, method string, body *structpb.Struct) {
	var (
		out *structpb.Struct
		err error
	)
	if c.handler == nil {
		err = ErrUnknownMethod
	} else {
		out, err = c.handler.HandleRequest(ctx, method, body)
	}
	msg := ""
	if err != nil {
		msg = err.Error()
		c.logger.Debug("request failed", zap.String("method", method), zap.Error(err))
	}
	if werr := c.write(kindResponse, method, out, msg); werr != nil {
		c.logger.Warn("failed to send response", zap.String("method", method), zap.Error(werr))
		c.Close()
	}
}

func (c *Channel) complete(method string, body *structpb.Struct, msg string) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	if pending == nil {
		c.logger.Warn("unexpected response", zap.String("method", method))
		return
	}
	r := reply{body: body}
	if msg != "" {
		r.err = &RemoteError{Method: method, Message: msg}
	}
	pending <- r
}

// Request sends a request and waits for its response.
func (c *Channel) Request(ctx context.Context, method string, body *structpb.Struct) (*structpb.Struct, error) {
	c.mu.Lock()
	if c.closed() {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("request %s while %s is pending: %w", method, c.method, ErrRequestPending)
	}
	pending := make(chan reply, 1)
	c.pending = pending
	c.method = method
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		if c.pending == pending {
			c.pending = nil
		}
		c.mu.Unlock()
	}

	if err := c.write(kindRequest, method, body, ""); err != nil {
		release()
		return nil, fmt.Errorf("request %s: %w", method, err)
	}
	select {
	case r := <-pending:
		return r.body, r.err
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	case <-c.done:
		release()
		return nil, ErrClosed
	}
}

// Notify sends a one-way message.
func (c *Channel) Notify(method string, body *structpb.Struct) error {
	if err := c.write(kindMessage, method, body, ""); err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	return nil
}

// Close closes the connection. Pending requests fail with ErrClosed.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) write(kind, method string, body *structpb.Struct, msg string) error {
	if c.closed() {
		return ErrClosed
	}
	fields := map[string]*structpb.Value{
		"type":   structpb.NewStringValue(kind),
		"method": structpb.NewStringValue(method),
	}
	if body != nil {
		fields["body"] = structpb.NewStructValue(body)
	}
	if msg != "" {
		fields["error"] = structpb.NewStringValue(msg)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.conn, &structpb.Struct{Fields: fields})
}

func unwrap(frame *structpb.Struct) (kind, method string, body *structpb.Struct, msg string) {
	f := frame.GetFields()
	kind = f["type"].GetStringValue()
	method = f["method"].GetStringValue()
	body = f["body"].GetStructValue()
	msg = f["error"].GetStringValue()
	return
}
