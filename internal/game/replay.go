package game

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/transaction"
	"github.com/fparadis2/mox/internal/wire"
	"go.uber.org/zap"
)

const replayVersion = 2

// Replay is the command log of a game, encoded command by command. Playing
// the log forward from an empty manager rebuilds the game.
type Replay struct {
	GameID   string
	Options  Options
	Checksum string
	Frames   [][]byte
	mu       sync.RWMutex
}

// replayMetadata is written ahead of the frames.
type replayMetadata struct {
	GameID     string
	Timestamp  time.Time
	Version    int
	Options    Options
	Checksum   string
	FrameCount int
}

// NewReplay creates an empty replay.
func NewReplay(gameID string, opts Options) *Replay {
	return &Replay{GameID: gameID, Options: opts}
}

// CaptureReplay encodes the committed log of g.
func CaptureReplay(gameID string, g *Game) (*Replay, error) {
	r := NewReplay(gameID, g.opts)
	for i, cmd := range g.Transactions.Commands() {
		if err := r.Record(cmd); err != nil {
			return nil, fmt.Errorf("capture replay %s: command %d: %w", gameID, i, err)
		}
	}
	r.Checksum = g.Checksum()
	return r, nil
}

// Record appends a command.
func (r *Replay) Record(cmd object.Command) error {
	data, err := wire.Marshal(cmd)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, data)
	return nil
}

// Size returns the number of recorded commands.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Frames)
}

// Commands decodes the log.
func (r *Replay) Commands() ([]object.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]object.Command, 0, len(r.Frames))
	for i, frame := range r.Frames {
		cmd, err := wire.Unmarshal(frame)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

// WriteTo writes the replay as a gzipped gob stream.
func (r *Replay) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counter := &countingWriter{w: w}
	gzipWriter := gzip.NewWriter(counter)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		GameID:     r.GameID,
		Timestamp:  time.Now(),
		Version:    replayVersion,
		Options:    r.Options,
		Checksum:   r.Checksum,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return counter.n, fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, frame := range r.Frames {
		if err := encoder.Encode(frame); err != nil {
			return counter.n, fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	if err := gzipWriter.Close(); err != nil {
		return counter.n, fmt.Errorf("failed to flush replay: %w", err)
	}
	return counter.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ReadReplay reads a replay written by WriteTo.
func ReadReplay(rd io.Reader) (*Replay, error) {
	gzipReader, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)
	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.GameID, metadata.Options)
	replay.Checksum = metadata.Checksum
	for i := 0; i < metadata.FrameCount; i++ {
		var frame []byte
		if err := decoder.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, frame)
	}
	return replay, nil
}

// Bytes returns the encoded replay.
func (r *Replay) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveToFile saves the replay to <directory>/<game id>.replay.
func (r *Replay) SaveToFile(directory string) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(filepath.Join(directory, r.GameID+".replay"))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()
	if _, err := r.WriteTo(file); err != nil {
		return err
	}
	return file.Close()
}

// LoadReplayFromFile loads a replay saved by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	file, err := os.Open(filepath.Join(directory, gameID+".replay"))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ReadReplay(file)
}

// ReplayPlayer steps through a replay with the undo and redo logs of its
// own stack.
type ReplayPlayer struct {
	Game     *Game
	position int
	total    int
}

// Play rebuilds the game of a replay and rewinds it to the start.
func (r *Replay) Play(logger *zap.Logger) (*ReplayPlayer, error) {
	cmds, err := r.Commands()
	if err != nil {
		return nil, err
	}
	m := object.NewManager(logger)
	stack := transaction.NewStack(m)
	m.SetSink(stack)
	for i, cmd := range cmds {
		if err := stack.PushAndExecute(cmd); err != nil {
			return nil, fmt.Errorf("replay command %d: %w", i, err)
		}
	}
	g := Attach(m, stack, r.Options, logger)
	if r.Checksum != "" && g.Checksum() != r.Checksum {
		return nil, fmt.Errorf("replay %s: checksum mismatch", r.GameID)
	}
	p := &ReplayPlayer{Game: g, position: len(cmds), total: len(cmds)}
	if err := p.Seek(0); err != nil {
		return nil, err
	}
	return p, nil
}

// Position returns the number of commands applied.
func (p *ReplayPlayer) Position() int {
	return p.position
}

// Len returns the number of commands of the replay.
func (p *ReplayPlayer) Len() int {
	return p.total
}

// Next applies one command. It returns false at the end.
func (p *ReplayPlayer) Next() (bool, error) {
	if p.position >= p.total {
		return false, nil
	}
	if err := p.Game.Transactions.Redo(); err != nil {
		return false, err
	}
	p.position++
	return true, nil
}

// Previous reverts one command. It returns false at the start.
func (p *ReplayPlayer) Previous() (bool, error) {
	if p.position == 0 {
		return false, nil
	}
	if err := p.Game.Transactions.Undo(); err != nil {
		return false, err
	}
	p.position--
	return true, nil
}

// Seek moves to position, clamped to the replay.
func (p *ReplayPlayer) Seek(position int) error {
	if position < 0 {
		position = 0
	}
	if position > p.total {
		position = p.total
	}
	for p.position > position {
		if _, err := p.Previous(); err != nil {
			return err
		}
	}
	for p.position < position {
		if _, err := p.Next(); err != nil {
			return err
		}
	}
	return nil
}

// ReplayRecorder keeps the replays of finished games until they are saved.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder saving to saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		saveDir: saveDir,
	}
}

// Capture records the log of g under gameID. It must run on the goroutine
// owning g.
func (rr *ReplayRecorder) Capture(gameID string, g *Game) (*Replay, error) {
	replay, err := CaptureReplay(gameID, g)
	if err != nil {
		return nil, err
	}
	rr.mu.Lock()
	rr.replays[gameID] = replay
	rr.mu.Unlock()

	rr.logger.Debug("captured replay",
		zap.String("game_id", gameID),
		zap.Int("frames", replay.Size()))
	return replay, nil
}

// GetReplay returns the replay of a game.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, exists := rr.replays[gameID]
	return replay, exists
}

// SaveReplay saves a replay to disk and removes it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.mu.Lock()
	replay, exists := rr.replays[gameID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.replays, gameID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("game_id", gameID),
		zap.Int("frames", replay.Size()),
		zap.String("directory", rr.saveDir))
	return nil
}

// LoadReplay loads a replay from disk.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(rr.saveDir, gameID)
	if err != nil {
		return nil, err
	}
	rr.logger.Info("loaded replay from disk",
		zap.String("game_id", gameID),
		zap.Int("frames", replay.Size()))
	return replay, nil
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
}
