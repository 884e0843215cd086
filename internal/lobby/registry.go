package lobby

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry holds the hosted games by id.
type Registry struct {
	hosts  map[string]*Host
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		hosts:  make(map[string]*Host),
		logger: logger,
	}
}

// Create hosts a new game.
func (r *Registry) Create(opts HostOptions) (*Host, error) {
	id := uuid.New().String()
	h, err := NewHost(id, opts, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.hosts[id] = h
	r.mu.Unlock()

	r.logger.Info("game created",
		zap.String("game_id", id),
		zap.Int("seats", h.opts.Seats),
	)
	return h, nil
}

// Get retrieves a game by id.
func (r *Registry) Get(id string) (*Host, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hosts[id]
	return h, ok
}

// Remove closes and forgets a game.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	h, ok := r.hosts[id]
	delete(r.hosts, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	h.Close()
	r.logger.Info("game removed", zap.String("game_id", id))
}

// All returns every game, oldest first.
func (r *Registry) All() []*Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hosts := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].created.Before(hosts[j].created) })
	return hosts
}

// ActiveCount returns the number of games being played.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, h := range r.hosts {
		if h.State() == HostPlaying {
			count++
		}
	}
	return count
}

// Close removes every game.
func (r *Registry) Close() {
	for _, h := range r.All() {
		r.Remove(h.ID)
	}
}
