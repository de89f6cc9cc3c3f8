/*
handlers_test.go - Tests for the session API

Tests for:
- Full request flows through the router and the sandbox backend
- Error status mapping (400/404/409/422/502)
- Prefilled sessions
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-hub/form"
	"github.com/warp/workforce-hub/requests"
	"github.com/warp/workforce-hub/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testEnv struct {
	server  *httptest.Server
	handler *Handler
	store   *memory.Memory
}

// newTestEnv serves the API. With a nil collaborator submissions go to the
// in-process sandbox.
func newTestEnv(t *testing.T, collab form.Collaborator) *testEnv {
	t.Helper()

	catalog, err := requests.DefaultCatalog()
	require.NoError(t, err)

	st := memory.New()
	sandbox := NewSandbox(st, nil)
	if collab == nil {
		collab = sandbox
	}
	metrics := NewMetrics()

	h := NewHandler(Options{
		Catalog:     catalog,
		Sessions:    NewRegistry(metrics),
		Coordinator: form.NewCoordinator(metrics.Instrument(collab), nil),
		Sandbox:     sandbox,
		Metrics:     metrics,
	})
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, handler: h, store: st}
}

// do sends a JSON request and decodes the response into out (if non-nil).
func (e *testEnv) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) createSession(t *testing.T, formID string) SessionDTO {
	t.Helper()
	var s SessionDTO
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/forms/"+formID+"/sessions", nil, &s))
	return s
}

func (e *testEnv) setField(t *testing.T, id, field string, value any) SessionDTO {
	t.Helper()
	var s SessionDTO
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/sessions/"+id+"/fields/"+field, SetFieldRequest{Value: value}, &s), field)
	return s
}

// completeLeave fills both leave steps and stops on the last one.
func (e *testEnv) completeLeave(t *testing.T, id string) {
	t.Helper()
	e.setField(t, id, "leaveType", "Annual Leave")
	e.setField(t, id, "startDate", "2025-05-08")
	e.setField(t, id, "endDate", "2025-05-10")
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/sessions/"+id+"/next", nil, nil))
	e.setField(t, id, "reason", "Family trip")
}

// =============================================================================
// FORMS
// =============================================================================

func TestListForms(t *testing.T) {
	env := newTestEnv(t, nil)

	var forms []FormDTO
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/forms", nil, &forms))
	require.Len(t, forms, 4)
	assert.Equal(t, "leave", forms[0].ID)
	assert.Equal(t, requests.EndpointLeave, forms[0].Endpoint)

	var overtime FormDTO
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/forms/overtime", nil, &overtime))
	var hours FieldDTO
	for _, f := range overtime.Steps[0].Fields {
		if f.Name == "totalHours" {
			hours = f
		}
	}
	assert.True(t, hours.ReadOnly)
	assert.Equal(t, []string{"startTime", "endTime"}, hours.DependsOn)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/forms/payroll", nil, nil))
}

// =============================================================================
// SESSION FLOW
// =============================================================================

func TestLeaveFlow_SubmitsToSandbox(t *testing.T) {
	// GIVEN: a new leave session
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormLeave)
	assert.Equal(t, 0, s.Step)
	assert.Equal(t, 2, s.StepCount)
	assert.Equal(t, "idle", s.Status.State)

	// WHEN: the user fills both steps and submits
	env.completeLeave(t, s.ID)
	var resp SubmitResponse
	status := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil, &resp)

	// THEN: the session succeeded
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "succeeded", resp.Session.Status.State)
	assert.False(t, resp.Session.CanSubmit)

	// AND: the sandbox stored the leave request
	records, err := env.store.ListRecords(context.Background(), "leave-requests")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Annual Leave", records[0].Payload["leaveType"])
	assert.Equal(t, "Family trip", records[0].Payload["reason"])

	// AND: a second submit is a conflict
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil, &resp))
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/fields/reason", SetFieldRequest{Value: "x"}, nil))
}

func TestOvertimeFlow_DerivesHours(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormOvertime)

	env.setField(t, s.ID, "date", "2025-05-08")
	env.setField(t, s.ID, "startTime", "22:00")
	got := env.setField(t, s.ID, "endTime", "02:30")

	assert.Equal(t, 4.5, got.Values["totalHours"])
	assert.Empty(t, got.Errors)

	var errResp ErrorResponse
	status := env.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/fields/totalHours", SetFieldRequest{Value: 8}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errResp.Details, "derived")
}

func TestNext_IncompleteStepListsFields(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormLeave)
	env.setField(t, s.ID, "leaveType", "Sick Leave")

	var errResp ErrorResponse
	status := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/next", nil, &errResp)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, errResp.Fields, "startDate")
	assert.Contains(t, errResp.Fields, "endDate")
	assert.NotContains(t, errResp.Fields, "leaveType")

	var snap SessionDTO
	env.do(t, http.MethodGet, "/api/sessions/"+s.ID, nil, &snap)
	assert.Equal(t, 0, snap.Step)
}

func TestPreviousAndReset(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormLeave)
	env.completeLeave(t, s.ID)

	var snap SessionDTO
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/previous", nil, &snap))
	assert.Equal(t, 0, snap.Step)
	assert.Equal(t, "Family trip", snap.Values["reason"], "values survive navigation")

	snap = SessionDTO{}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/reset", nil, &snap))
	assert.Equal(t, 0, snap.Step)
	assert.Empty(t, snap.Values)
	assert.Equal(t, "idle", snap.Status.State)
}

func TestCreateSession_Prefill(t *testing.T) {
	env := newTestEnv(t, nil)

	var s SessionDTO
	body := CreateSessionRequest{Values: map[string]any{"employeeId": "EMP-042", "amount": 80}}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/forms/reimbursement/sessions", body, &s))
	assert.Equal(t, "EMP-042", s.Values["employeeId"])
	assert.Equal(t, 80.0, s.Values["amount"])

	bad := CreateSessionRequest{Values: map[string]any{"salary": 1}}
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/forms/reimbursement/sessions", bad, nil))
	assert.Equal(t, 1, env.handler.Sessions.Len(), "failed prefill does not leak a session")
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormTraining)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/sessions/"+s.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/"+s.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/sessions/"+s.ID, nil, nil))
}

func TestSetField_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormLeave)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/sessions/"+s.ID+"/fields/salary", SetFieldRequest{Value: 1}, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/sessions/missing/fields/reason", SetFieldRequest{Value: "x"}, nil))

	req, err := http.NewRequest(http.MethodPut, env.server.URL+"/api/sessions/"+s.ID+"/fields/reason", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SUBMIT OUTCOMES
// =============================================================================

func TestSubmit_Incomplete(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormLeave)

	var resp SubmitResponse
	status := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil, &resp)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, form.IncompleteNotice, resp.Error)
	assert.Equal(t, "idle", resp.Session.Status.State)
}

func TestSubmit_Rejected(t *testing.T) {
	collab := form.CollaboratorFunc(func(context.Context, form.Submission) (form.Reply, error) {
		return form.Reply{Successful: false, Message: "Insufficient leave balance"}, nil
	})
	env := newTestEnv(t, collab)
	s := env.createSession(t, requests.FormLeave)
	env.completeLeave(t, s.ID)

	var resp SubmitResponse
	status := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil, &resp)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "failed", resp.Session.Status.State)
	assert.Equal(t, "Insufficient leave balance", resp.Session.Status.Reason)
	assert.True(t, resp.Session.CanSubmit, "failed sessions can be resubmitted")
}

func TestSubmit_TransportFailure(t *testing.T) {
	collab := form.CollaboratorFunc(func(context.Context, form.Submission) (form.Reply, error) {
		return form.Reply{}, errors.New("connection refused")
	})
	env := newTestEnv(t, collab)
	s := env.createSession(t, requests.FormLeave)
	env.completeLeave(t, s.ID)

	var resp SubmitResponse
	status := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil, &resp)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "connection refused", resp.Session.Status.Reason)
	assert.Equal(t, "Family trip", resp.Session.Values["reason"])
}

func TestSubmit_IncompleteListsFields(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.createSession(t, requests.FormLeave)
	env.setField(t, s.ID, "leaveType", "Sick Leave")

	var resp SubmitResponse
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil, &resp))

	assert.Contains(t, resp.Fields, "startDate")
	assert.Contains(t, resp.Fields, "reason", "fields of later steps are listed too")
	assert.NotContains(t, resp.Fields, "leaveType")
}

func TestSubmit_ClientDisconnectDoesNotAbortBackendCall(t *testing.T) {
	// GIVEN: a backend call that blocks until released
	entered := make(chan context.Context, 1)
	release := make(chan struct{})
	collab := form.CollaboratorFunc(func(ctx context.Context, _ form.Submission) (form.Reply, error) {
		entered <- ctx
		<-release
		if err := ctx.Err(); err != nil {
			return form.Reply{}, err
		}
		return form.Reply{Successful: true}, nil
	})
	env := newTestEnv(t, collab)
	s := env.createSession(t, requests.FormLeave)
	env.completeLeave(t, s.ID)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+s.ID+"/submit", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		NewRouter(env.handler).ServeHTTP(rec, req)
		close(done)
	}()

	// WHEN: the client goes away mid-flight
	callCtx := <-entered
	cancel()

	// THEN: the backend call keeps its context and the submit succeeds
	assert.NoError(t, callCtx.Err())
	close(release)
	<-done

	assert.Equal(t, http.StatusOK, rec.Code)
	session, err := env.handler.Sessions.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, form.Succeeded(), session.Status())
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrSessionNotFound, http.StatusNotFound},
		{form.ErrUnknownField, http.StatusBadRequest},
		{form.ErrReadOnlyField, http.StatusBadRequest},
		{&form.StepIncompleteError{Step: 1}, http.StatusUnprocessableEntity},
		{form.ErrIncomplete, http.StatusUnprocessableEntity},
		{form.ErrSubmitInFlight, http.StatusConflict},
		{form.ErrStaleSession, http.StatusConflict},
		{&form.SubmissionRejectedError{Message: "no"}, http.StatusUnprocessableEntity},
		{&form.TransportFailureError{Err: errors.New("timeout")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err), tc.err.Error())
	}
}
