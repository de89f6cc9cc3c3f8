/*
handlers.go - HTTP API handlers for hosted form sessions

PURPOSE:
  Exposes the stepped form engine over REST so thin clients (mobile, web)
  can drive a form without re-implementing validation. Each session lives
  in the server's Registry; clients only send edits and navigation.

ENDPOINTS:
  Forms:
    GET    /api/forms                          List form definitions
    GET    /api/forms/{form}                   One definition
    POST   /api/forms/{form}/sessions          Start a session

  Sessions:
    GET    /api/sessions/{id}                  Current snapshot
    DELETE /api/sessions/{id}                  Abandon
    PUT    /api/sessions/{id}/fields/{field}   Set a field
    POST   /api/sessions/{id}/next             Validate step and advance
    POST   /api/sessions/{id}/previous         Step back
    POST   /api/sessions/{id}/submit           Submit to the backend
    POST   /api/sessions/{id}/reset            Start over
    GET    /api/sessions/{id}/events           WebSocket event stream

REQUEST FLOW:
  1. Parse HTTP request (numbers decoded as json.Number)
  2. Look up the session
  3. Call the session or coordinator
  4. Serialize the resulting snapshot
  5. Map errors to a status code

ERROR HANDLING:
  - 400: Invalid JSON, unknown or read-only field
  - 404: Unknown form or session
  - 409: Session closed, already submitted, submission in flight
  - 422: Step or form incomplete, backend rejected the request
  - 502: Backend unreachable

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - events.go: WebSocket stream
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/workforce-hub/form"
	"github.com/warp/workforce-hub/logger"
	"github.com/warp/workforce-hub/requests"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options holds everything the router needs.
type Options struct {
	Catalog     *requests.Catalog
	Sessions    *Registry
	Coordinator *form.Coordinator

	// Sandbox is mounted under /api/employee when set.
	Sandbox *Sandbox

	Metrics        *Metrics
	Logger         logger.Logger
	AllowedOrigins []string
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog     *requests.Catalog
	Sessions    *Registry
	Coordinator *form.Coordinator
	Sandbox     *Sandbox
	Metrics     *Metrics

	log            logger.Logger
	allowedOrigins []string
}

func NewHandler(opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		Catalog:        opts.Catalog,
		Sessions:       opts.Sessions,
		Coordinator:    opts.Coordinator,
		Sandbox:        opts.Sandbox,
		Metrics:        opts.Metrics,
		log:            log,
		allowedOrigins: opts.AllowedOrigins,
	}
}

// =============================================================================
// FORM HANDLERS
// =============================================================================

// ListForms returns every form definition.
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	defs := h.Catalog.List()
	dtos := make([]FormDTO, len(defs))
	for i, d := range defs {
		dtos[i] = toFormDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	def, ok := h.Catalog.Get(chi.URLParam(r, "form"))
	if !ok {
		writeError(w, http.StatusNotFound, "Form not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toFormDTO(def))
}

// CreateSession starts a session, applying any prefilled values.
// POST /api/forms/{form}/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	def, ok := h.Catalog.Get(chi.URLParam(r, "form"))
	if !ok {
		writeError(w, http.StatusNotFound, "Form not found", nil)
		return
	}

	var req CreateSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s := h.Sessions.Create(def)
	for name, value := range req.Values {
		if err := s.SetField(name, value); err != nil {
			_ = h.Sessions.Remove(s.ID())
			writeError(w, statusForError(err), "Invalid prefill value", err)
			return
		}
	}

	h.log.Infow("session created", "session_id", s.ID(), "form", def.ID())
	writeJSON(w, http.StatusCreated, toSessionDTO(s.Snapshot()))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s.Snapshot()))
}

// DeleteSession abandons a session. A submission still in flight completes
// against the backend but its result is dropped.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Sessions.Remove(id); err != nil {
		writeError(w, http.StatusNotFound, "Session not found", err)
		return
	}
	h.log.Infow("session abandoned", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SetField stores one value. Validation failures are not errors here; they
// appear in the snapshot's errors map.
// PUT /api/sessions/{id}/fields/{field}
func (h *Handler) SetField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetFieldRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.SetField(chi.URLParam(r, "field"), req.Value); err != nil {
		writeError(w, statusForError(err), "Cannot set field", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s.Snapshot()))
}

// Next validates the current step and advances.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.GoNext(); err != nil {
		resp := ErrorResponse{Error: "Cannot advance", Details: err.Error()}
		var stepErr *form.StepIncompleteError
		if errors.As(err, &stepErr) {
			resp.Error = "Please fix the highlighted fields"
			resp.Fields = stepErr.Errors
		}
		writeJSON(w, statusForError(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s.Snapshot()))
}

// Previous steps back. At the first step it is a no-op.
func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.Closed() {
		writeError(w, http.StatusConflict, "Session closed", form.ErrSessionClosed)
		return
	}
	s.GoPrevious()
	writeJSON(w, http.StatusOK, toSessionDTO(s.Snapshot()))
}

// Submit sends the form to the backend and waits for the answer. The
// backend call is detached from the request: a client that disconnects
// does not abort a submission the backend may already have stored. The
// collaborator's own timeout bounds the call.
// POST /api/sessions/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	_, err := h.Coordinator.Submit(context.WithoutCancel(r.Context()), s)
	snap := s.Snapshot()
	resp := SubmitResponse{Session: toSessionDTO(snap)}
	if err != nil {
		resp.Error = err.Error()
		if errors.Is(err, form.ErrIncomplete) {
			resp.Error = form.IncompleteNotice
			resp.Fields = s.Definition().Validate(snap.Values)
		}
		writeJSON(w, statusForError(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reset clears the session back to step 0.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.Closed() {
		writeError(w, http.StatusConflict, "Session closed", form.ErrSessionClosed)
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, toSessionDTO(s.Snapshot()))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*form.Session, bool) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found", err)
		return nil, false
	}
	return s, true
}

// statusForError maps engine errors to HTTP status codes.
func statusForError(err error) int {
	var transport *form.TransportFailureError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case form.IsClientError(err):
		if errors.Is(err, form.ErrUnknownField) || errors.Is(err, form.ErrReadOnlyField) {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case form.IsConflict(err):
		return http.StatusConflict
	case errors.As(err, &transport):
		return http.StatusBadGateway
	case errors.Is(err, form.ErrSubmissionFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeJSON decodes the body keeping numbers as json.Number. An empty
// body is accepted when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
