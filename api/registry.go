/*
registry.go - In-memory form session registry

PURPOSE:
  Holds the live form sessions of the service, keyed by a random id.
  Sessions are never persisted; a restart drops them.

LIFECYCLE:
  Create  -> new session at step 0, idle
  Remove  -> client abandoned the form (DELETE), session closed
  Expire  -> sweeper closes sessions idle longer than the TTL

  Closing a session bumps its generation, so a submission still in flight
  finishes without touching it.

SEE ALSO:
  - sweeper.go: Calls Expire on a ticker
  - handlers.go: HTTP operations on sessions
*/
package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/workforce-hub/form"
)

// ErrSessionNotFound is returned for unknown or already removed sessions.
var ErrSessionNotFound = errors.New("session not found")

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*form.Session
	metrics  *Metrics

	// NewID generates session ids. Defaults to random UUIDs.
	NewID func() string
}

func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*form.Session),
		metrics:  metrics,
		NewID:    uuid.NewString,
	}
}

// Create starts a session for def.
func (r *Registry) Create(def *form.Definition) *form.Session {
	s := form.NewSession(r.NewID(), def)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.metrics.sessionOpened(def.ID())
	return s
}

func (r *Registry) Get(id string) (*form.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	r.metrics.sessionClosed(false)
	return nil
}

// Expire closes every session whose last activity is before cutoff and
// returns their ids, sorted.
func (r *Registry) Expire(cutoff time.Time) []string {
	var expired []*form.Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastActivity().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		s.Close()
		r.metrics.sessionClosed(true)
		ids = append(ids, s.ID())
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*form.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		r.metrics.sessionClosed(false)
	}
}
