package lobby

import (
	"fmt"
	"sync"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/replication"
	"github.com/fparadis2/mox/internal/game/transaction"
	"github.com/fparadis2/mox/internal/wire"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// Feed event names.
const (
	EventCommand = "command"
	EventBegin   = "begin"
	EventEnd     = "end"
)

// DefaultFeedBuffer is the number of events a feed holds for a slow reader.
const DefaultFeedBuffer = 4096

// Feed is a replication listener that queues encoded events for a remote
// viewer. A reader that falls behind by more than the buffer is dropped.
type Feed struct {
	host   *Host
	viewer object.ID
	handle int
	ch     chan *structpb.Struct
	logger *zap.Logger

	// OnDrop runs on its own goroutine when the feed overflows.
	OnDrop func()

	dropped   bool
	closeOnce sync.Once
}

var _ replication.Listener = (*Feed)(nil)

func newFeed(h *Host, viewer object.ID, buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		host:   h,
		viewer: viewer,
		ch:     make(chan *structpb.Struct, buffer),
		logger: h.logger.With(zap.Int("viewer", int(viewer))),
	}
}

// Events is closed when the feed is closed or dropped.
func (f *Feed) Events() <-chan *structpb.Struct {
	return f.ch
}

func (f *Feed) Viewer() object.ID {
	return f.viewer
}

// Close unregisters the feed.
func (f *Feed) Close() {
	if err := f.host.Post(func() { f.host.unwatch(f) }); err != nil {
		f.close()
	}
}

func (f *Feed) close() {
	f.closeOnce.Do(func() { close(f.ch) })
}

func (f *Feed) Synchronize(cmd object.Command) {
	body, err := wire.Encode(cmd)
	if err != nil {
		f.logger.Error("failed to encode command", zap.Error(err))
		return
	}
	f.send(map[string]*structpb.Value{
		"event":   structpb.NewStringValue(EventCommand),
		"command": structpb.NewStructValue(body),
	})
}

func (f *Feed) BeginTransaction(t transaction.Type) {
	f.send(map[string]*structpb.Value{
		"event": structpb.NewStringValue(EventBegin),
		"type":  structpb.NewNumberValue(float64(t)),
	})
}

func (f *Feed) EndCurrentTransaction(rollback bool) {
	f.send(map[string]*structpb.Value{
		"event":    structpb.NewStringValue(EventEnd),
		"rollback": structpb.NewBoolValue(rollback),
	})
}

// send runs on the game goroutine.
func (f *Feed) send(fields map[string]*structpb.Value) {
	if f.dropped {
		return
	}
	select {
	case f.ch <- &structpb.Struct{Fields: fields}:
	default:
		f.dropped = true
		f.logger.Warn("feed overflow, dropping viewer", zap.Int("buffer", cap(f.ch)))
		go func() {
			f.Close()
			if f.OnDrop != nil {
				f.OnDrop()
			}
		}()
	}
}

// Apply replays a feed event on l, typically a replica.
func Apply(l replication.Listener, event *structpb.Struct) error {
	fields := event.GetFields()
	switch name := fields["event"].GetStringValue(); name {
	case EventCommand:
		cmd, err := wire.Decode(fields["command"].GetStructValue())
		if err != nil {
			return fmt.Errorf("apply feed event: %w", err)
		}
		l.Synchronize(cmd)
	case EventBegin:
		l.BeginTransaction(transaction.Type(fields["type"].GetNumberValue()))
	case EventEnd:
		l.EndCurrentTransaction(fields["rollback"].GetBoolValue())
	default:
		return fmt.Errorf("apply feed event: unknown event %q", name)
	}
	return nil
}
