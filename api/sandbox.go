/*
sandbox.go - In-process HR backend

PURPOSE:
  Stands in for the external HR backend when no backend URL is configured.
  It accepts the same request bodies at the same endpoints and stores them
  so the service is usable on its own (demos, local development, tests).

ENDPOINTS:
  POST   /api/employee/leave-requests
  POST   /api/employee/overtime-requests
  POST   /api/employee/reimbursement-requests
  POST   /api/employee/training-enrollments
  GET    /api/employee/requests[?kind=leave-requests]
  GET    /api/employee/requests/{id}
  DELETE /api/employee/requests      Clear all stored requests (dev only)

TWO ENTRY POINTS:
  - HTTP handlers above, for external clients
  - SubmitRequest, so the coordinator can call it directly as its
    form.Collaborator without a network hop

  Both go through accept(), so behaviour is identical.

IDEMPOTENCY:
  The Idempotency-Key header (or the submission id when called in-process)
  is stored with the record. A replay is rejected with 409 and
  {"successful": false}.

SEE ALSO:
  - store/store.go: Record persistence
  - client/client.go: The HTTP collaborator that talks to this
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/workforce-hub/client"
	"github.com/warp/workforce-hub/form"
	"github.com/warp/workforce-hub/logger"
	"github.com/warp/workforce-hub/requests"
	"github.com/warp/workforce-hub/store"
)

const _employeeAPIPrefix = "/api/employee/"

// SandboxKinds are the request kinds the sandbox accepts, named after the
// last path segment of their endpoint.
var SandboxKinds = []string{
	"leave-requests",
	"overtime-requests",
	"reimbursement-requests",
	"training-enrollments",
}

type Sandbox struct {
	store store.Store
	log   logger.Logger
	now   func() time.Time
	kinds map[string]bool
}

func NewSandbox(st store.Store, log logger.Logger) *Sandbox {
	if log == nil {
		log = logger.Nop()
	}
	kinds := make(map[string]bool, len(SandboxKinds))
	for _, k := range SandboxKinds {
		kinds[k] = true
	}
	return &Sandbox{store: st, log: log, now: time.Now, kinds: kinds}
}

// =============================================================================
// IN-PROCESS COLLABORATOR
// =============================================================================

// SubmitRequest implements form.Collaborator.
func (sb *Sandbox) SubmitRequest(ctx context.Context, sub form.Submission) (form.Reply, error) {
	if !strings.HasPrefix(sub.Endpoint, _employeeAPIPrefix) {
		return form.Reply{Successful: false, Message: "Unknown endpoint " + sub.Endpoint}, nil
	}
	res, err := sb.accept(ctx, path.Base(sub.Endpoint), sub.ID, sub.Payload)
	return res.reply, err
}

// outcome is the result of accept with the HTTP status it maps to.
type outcome struct {
	reply  form.Reply
	record *store.Record
	status int
}

// accept validates and stores one request. The error is non-nil only when
// the store itself failed.
func (sb *Sandbox) accept(ctx context.Context, kind, idempotencyKey string, payload map[string]any) (outcome, error) {
	if !sb.kinds[kind] {
		return rejected(http.StatusNotFound, "Unknown request kind "+kind), nil
	}
	if len(payload) == 0 {
		return rejected(http.StatusBadRequest, "Request body is empty"), nil
	}

	rec := store.Record{
		ID:             uuid.NewString(),
		Kind:           kind,
		EmployeeID:     stringField(payload, "employeeId"),
		Status:         stringField(payload, "status"),
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
		CreatedAt:      sb.now(),
	}
	if rec.Status == "" {
		rec.Status = requests.StatusPending
	}

	if idempotencyKey != "" {
		seen, err := sb.store.Exists(ctx, idempotencyKey)
		if err != nil {
			return outcome{}, err
		}
		if seen {
			return sb.duplicate(kind, idempotencyKey), nil
		}
	}

	// A concurrent replay can still slip past Exists; the unique key catches it.
	if err := sb.store.SaveRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
			return sb.duplicate(kind, idempotencyKey), nil
		}
		return outcome{}, err
	}

	sb.log.Infow("request accepted", "kind", kind, "record_id", rec.ID)
	return outcome{
		reply:  form.Reply{Successful: true, Message: "Request submitted"},
		record: &rec,
		status: http.StatusCreated,
	}, nil
}

func (sb *Sandbox) duplicate(kind, idempotencyKey string) outcome {
	sb.log.Warnw("duplicate submission rejected", "kind", kind, "idempotency_key", idempotencyKey)
	return rejected(http.StatusConflict, "Duplicate request")
}

func rejected(status int, message string) outcome {
	return outcome{reply: form.Reply{Successful: false, Message: message}, status: status}
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// =============================================================================
// HTTP HANDLERS
// =============================================================================

// CreateRequest stores a request.
// POST /api/employee/{kind}
func (sb *Sandbox) CreateRequest(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var payload map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, SandboxReplyDTO{Successful: false, Message: "Invalid JSON body"})
		return
	}

	res, err := sb.accept(r.Context(), kind, r.Header.Get(client.IdempotencyHeader), payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store request", err)
		return
	}
	writeJSON(w, res.status, toSandboxReplyDTO(res.reply, res.record))
}

// ListRequests returns stored requests, newest first.
// GET /api/employee/requests
func (sb *Sandbox) ListRequests(w http.ResponseWriter, r *http.Request) {
	records, err := sb.store.ListRecords(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRequest returns one stored request.
// GET /api/employee/requests/{id}
func (sb *Sandbox) GetRequest(w http.ResponseWriter, r *http.Request) {
	rec, err := sb.store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Request not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// ResetRequests deletes every stored request.
// DELETE /api/employee/requests
func (sb *Sandbox) ResetRequests(w http.ResponseWriter, r *http.Request) {
	if err := sb.store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset requests", err)
		return
	}
	sb.log.Warnw("sandbox requests cleared")
	w.WriteHeader(http.StatusNoContent)
}
