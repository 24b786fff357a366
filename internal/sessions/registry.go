// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sessions keeps the active chat sessions, keyed by an opaque id,
// so that each front-end client keeps its own conversation between
// requests.
package sessions

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/internal/pipeline"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Entry is one registered session.
type Entry struct {
	ID        string
	Result    *pipeline.Result
	CreatedAt time.Time
	LastUsed  time.Time
}

// Registry maps session ids to built sessions. It is safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Entry

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New returns an empty registry. Both arguments may be nil.
func New(m *metrics.Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		sessions: make(map[string]*Entry),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Put registers res under a new id and returns the entry.
func (r *Registry) Put(res *pipeline.Result) *Entry {
	now := r.now()
	e := &Entry{ID: uuid.NewString(), Result: res, CreatedAt: now, LastUsed: now}

	r.mu.Lock()
	r.sessions[e.ID] = e
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	r.logger.Debug("session registered", "id", e.ID, "topic", res.Topic)
	return e
}

// Replace swaps the session under id for res, closing the previous one.
// An unknown id registers res under that id.
func (r *Registry) Replace(id string, res *pipeline.Result) *Entry {
	now := r.now()
	e := &Entry{ID: id, Result: res, CreatedAt: now, LastUsed: now}

	r.mu.Lock()
	prev := r.sessions[id]
	r.sessions[id] = e
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	if prev != nil {
		r.close(prev)
	}
	r.logger.Debug("session replaced", "id", id, "topic", res.Topic)
	return e
}

// Get returns the entry for id and marks it used.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.LastUsed = r.now()
	return e, nil
}

// Delete removes and closes the session under id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	r.metrics.SetActiveSessions(n)
	r.close(e)
	return nil
}

// Sweep removes and closes every session unused for longer than ttl and
// returns how many were removed. A non-positive ttl removes nothing.
func (r *Registry) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)

	var expired []*Entry
	r.mu.Lock()
	for id, e := range r.sessions {
		if e.LastUsed.Before(cutoff) {
			expired = append(expired, e)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	for _, e := range expired {
		r.close(e)
	}
	if len(expired) > 0 {
		r.logger.Info("expired idle sessions", "count", len(expired), "remaining", n)
	}
	return len(expired)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll removes and closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Entry)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(0)
	for _, e := range all {
		r.close(e)
	}
}

func (r *Registry) close(e *Entry) {
	if err := e.Result.Close(); err != nil {
		r.logger.Warn("closing session", "id", e.ID, "error", err)
	}
}
