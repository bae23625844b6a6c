// Package registry holds the ephemeral per-session state for the lifetime of
// the process. Entries are created by submissions, updated by the drain loop
// and removed by the retention sweeper.
package registry

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/pkg/logger"
	"github.com/okian/oratora/pkg/metrics"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry is a mutex-guarded map of session id to session. Callers never
// receive the stored pointer: every read returns a clone, and every write
// goes through Mutate.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	logger   logger.Logger
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*model.Session),
		logger:   logger.Get().Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateOrGet returns the entry for id, materializing it with init when it
// does not exist yet. created reports whether init ran. Repeated calls never
// reset an existing entry.
func (r *Registry) CreateOrGet(id string, init func() *model.Session) (s *model.Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[id]; ok {
		return cur.Clone(), false
	}
	s = init()
	s.ID = id
	r.sessions[id] = s
	metrics.RecordSessionCreated(string(s.GameType))
	metrics.UpdateActiveSessions(len(r.sessions))
	r.logger.Debug(context.Background(), "session created",
		logger.String("session_id", id),
		logger.String("game", string(s.GameType)),
	)
	return s.Clone(), true
}

// Get returns a copy of the entry for id.
func (r *Registry) Get(id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

// Mutate applies fn to the entry for id as one atomic step. fn works on a
// copy which replaces the stored entry only when fn returns nil, so a failed
// mutation leaves no partial state behind. The committed entry is returned.
func (r *Registry) Mutate(id string, fn func(*model.Session) error) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return cur.Clone(), err
	}
	r.sessions[id] = next
	return next.Clone(), nil
}

// Delete removes the entry for id and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	metrics.UpdateActiveSessions(len(r.sessions))
	return true
}

// DeleteCreatedBefore removes every entry created before cutoff, whatever its
// status, and returns the removed sessions.
func (r *Registry) DeleteCreatedBefore(cutoff time.Time) []*model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*model.Session
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			removed = append(removed, s)
			delete(r.sessions, id)
		}
	}
	if len(removed) > 0 {
		metrics.UpdateActiveSessions(len(r.sessions))
	}
	return removed
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns copies of all entries ordered by creation time.
func (r *Registry) Snapshot() []*model.Session {
	r.mu.RLock()
	out := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *model.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
