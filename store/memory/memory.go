// Package memory provides an in-memory store.Store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/workforce-hub/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	records     []store.Record
	byID        map[string]int
	idempotency map[string]bool
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		byID:        make(map[string]int),
		idempotency: make(map[string]bool),
	}
}

// SaveRecord appends a record. Append-only.
func (m *Memory) SaveRecord(_ context.Context, r store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byID[r.ID]; dup {
		return store.ErrDuplicateIdempotencyKey
	}
	if r.IdempotencyKey != "" && m.idempotency[r.IdempotencyKey] {
		return store.ErrDuplicateIdempotencyKey
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	r.Payload = clonePayload(r.Payload)
	m.byID[r.ID] = len(m.records)
	m.records = append(m.records, r)
	if r.IdempotencyKey != "" {
		m.idempotency[r.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id string) (*store.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := m.records[i]
	r.Payload = clonePayload(r.Payload)
	return &r, nil
}

// ListRecords returns records newest first. Ties keep reverse insertion
// order.
func (m *Memory) ListRecords(_ context.Context, kind string) ([]store.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.Record
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if kind != "" && r.Kind != kind {
			continue
		}
		r.Payload = clonePayload(r.Payload)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.byID = make(map[string]int)
	m.idempotency = make(map[string]bool)
	return nil
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
