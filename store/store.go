/*
Package store defines persistence for requests received by the sandbox
backend.

PURPOSE:
  When the service runs without an external HR backend it answers
  submissions itself (api/sandbox.go). Every accepted request is stored as
  a Record so it can be listed back and so a retried submission with the
  same idempotency key is recognised.

APPEND-ONLY CONTRACT:
  - SaveRecord(): the only write
  - NO Update() or Delete() methods exist (Reset is for tests and demos)

IDEMPOTENCY:
  A record carries the submission id as its idempotency key. Saving a
  second record with the same key fails with ErrDuplicateIdempotencyKey.

IMPLEMENTATIONS:
  - store/sqlite: SQLite, used by cmd/server
  - store/memory: In-memory, used by tests

SEE ALSO:
  - api/sandbox.go: Writes and lists records
*/
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Record is one request accepted by the sandbox backend.
type Record struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"` // leave-requests, overtime-requests, ...
	EmployeeID     string         `json:"employeeId,omitempty"`
	Status         string         `json:"status"`
	IdempotencyKey string         `json:"-"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Store persists records.
type Store interface {
	// SaveRecord appends a record. Returns ErrDuplicateIdempotencyKey if the
	// key was already used.
	SaveRecord(ctx context.Context, r Record) error

	// GetRecord returns ErrNotFound for unknown ids.
	GetRecord(ctx context.Context, id string) (*Record, error)

	// ListRecords returns records newest first. An empty kind lists all.
	ListRecords(ctx context.Context, kind string) ([]Record, error)

	// Exists reports whether an idempotency key was already used.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// Reset deletes every record.
	Reset(ctx context.Context) error
}
