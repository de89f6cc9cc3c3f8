/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists requests accepted by the sandbox backend so they survive a
  restart and can be listed back through GET /api/employee/requests.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the records table
  - No DELETE statements outside Reset (tests and demos)

KEY TABLES:
  records: One row per accepted request, payload stored as JSON

INDEXES:
  - idempotency_key UNIQUE: Rejects replays of the same submission
  - idx_records_kind_created: Listing by kind (hot path)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  Opened with WAL so readers don't block the single writer.

USAGE:
  st, err := sqlite.New("./workforce.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/workforce-hub/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		employee_id TEXT,
		status TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_kind_created
		ON records(kind, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORDS
// =============================================================================

// SaveRecord appends a record.
func (s *Store) SaveRecord(ctx context.Context, r store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO records (id, kind, employee_id, status, idempotency_key, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID,
		r.Kind,
		nullString(r.EmployeeID),
		r.Status,
		nullString(r.IdempotencyKey),
		string(payloadJSON),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, kind, employee_id, status, idempotency_key, payload_json, created_at
		FROM records WHERE id = ?
	`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecords returns records newest first, optionally filtered by kind.
func (s *Store) ListRecords(ctx context.Context, kind string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, kind, employee_id, status, idempotency_key, payload_json, created_at
		FROM records
		WHERE (? = '' OR kind = ?)
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := s.db.QueryContext(ctx, query, kind, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Exists checks if an idempotency key was already used.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE idempotency_key = ?", idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM records")
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (store.Record, error) {
	var r store.Record
	var employeeID, idempotencyKey sql.NullString
	var payloadJSON, createdAt string
	if err := row.Scan(&r.ID, &r.Kind, &employeeID, &r.Status, &idempotencyKey, &payloadJSON, &createdAt); err != nil {
		return store.Record{}, err
	}

	r.EmployeeID = employeeID.String
	r.IdempotencyKey = idempotencyKey.String
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
		return store.Record{}, fmt.Errorf("failed to decode payload of %s: %w", r.ID, err)
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
