package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := mustStruct(t, map[string]any{"name": "alice", "seat": 2.0})
	require.NoError(t, WriteFrame(&buf, body))
	require.NoError(t, WriteFrame(&buf, &structpb.Struct{}))

	size := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, uint32(buf.Len()-4-4), size, "second frame is empty")

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Fields["name"].GetStringValue())
	assert.Equal(t, 2.0, got.Fields["seat"].GetNumberValue())

	got, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.Fields)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejectsOversizedFrames(t *testing.T) {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], MaxFrameSize+1)
	_, err := ReadFrame(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func pipe(t *testing.T, server, client Handler) (*Channel, *Channel) {
	t.Helper()
	a, b := net.Pipe()
	sc := NewChannel(a, server, zaptest.NewLogger(t))
	cc := NewChannel(b, client, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go sc.Serve(ctx)
	go cc.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		sc.Close()
		cc.Close()
	})
	return sc, cc
}

func TestRequestResponse(t *testing.T) {
	router := NewRouter().OnRequest("echo", func(_ context.Context, body *structpb.Struct) (*structpb.Struct, error) {
		return body, nil
	}).OnRequest("fail", func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return nil, errors.New("no seat left")
	})
	_, client := pipe(t, router, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.Request(ctx, "echo", mustStruct(t, map[string]any{"v": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "x", out.Fields["v"].GetStringValue())

	_, err = client.Request(ctx, "fail", nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "fail", remote.Method)
	assert.Equal(t, "no seat left", remote.Message)

	_, err = client.Request(ctx, "missing", nil)
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, ErrUnknownMethod.Error())
}

func TestSecondRequestIsRejectedWhilePending(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	router := NewRouter().OnRequest("slow", func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		close(entered)
		<-release
		return &structpb.Struct{}, nil
	})
	_, client := pipe(t, router, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := client.Request(ctx, "slow", nil)
		first <- err
	}()
	<-entered

	_, err := client.Request(ctx, "slow", nil)
	assert.ErrorIs(t, err, ErrRequestPending)

	close(release)
	require.NoError(t, <-first)

	_, err = client.Request(ctx, "missing", nil)
	assert.NotErrorIs(t, err, ErrRequestPending, "the slot is free again")
}

func TestBothEndsCanRequest(t *testing.T) {
	serverRouter := NewRouter().OnRequest("ping", func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{"from": "server"}), nil
	})
	clientRouter := NewRouter().OnRequest("ping", func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{"from": "client"}), nil
	})
	server, client := pipe(t, serverRouter, clientRouter)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := server.Request(ctx, "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "client", out.Fields["from"].GetStringValue())

	out, err = client.Request(ctx, "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "server", out.Fields["from"].GetStringValue())
}

func TestNotifyAndClose(t *testing.T) {
	got := make(chan string, 1)
	router := NewRouter().OnMessage("chat", func(_ context.Context, body *structpb.Struct) {
		got <- body.Fields["text"].GetStringValue()
	})
	server, client := pipe(t, router, nil)

	require.NoError(t, client.Notify("chat", mustStruct(t, map[string]any{"text": "gg"})))
	select {
	case text := <-got:
		assert.Equal(t, "gg", text)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, server.Close())
	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not notice the hang up")
	}
	_, err := client.Request(context.Background(), "chat", nil)
	assert.ErrorIs(t, err, ErrClosed)
}
