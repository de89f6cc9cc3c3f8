package form_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-hub/form"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// readySession returns a session on its last step with every field valid.
func readySession(t *testing.T) *form.Session {
	t.Helper()
	s := form.NewSession("s1", shiftForm(t))
	fillSchedule(t, s)
	require.NoError(t, s.GoNext())
	require.NoError(t, s.SetField("reason", "Release night"))
	require.True(t, s.CanSubmit())
	return s
}

// countingCollaborator records calls and answers with reply/err.
type countingCollaborator struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  form.Submission
	reply form.Reply
	err   error
}

func (c *countingCollaborator) SubmitRequest(_ context.Context, sub form.Submission) (form.Reply, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = sub
	c.mu.Unlock()
	return c.reply, c.err
}

// gatedCollaborator blocks every call until release is closed.
type gatedCollaborator struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newGated() *gatedCollaborator {
	return &gatedCollaborator{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedCollaborator) SubmitRequest(ctx context.Context, _ form.Submission) (form.Reply, error) {
	g.calls.Add(1)
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return form.Reply{Successful: true}, nil
	case <-ctx.Done():
		return form.Reply{}, ctx.Err()
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_Success(t *testing.T) {
	collab := &countingCollaborator{reply: form.Reply{Successful: true}}
	c := form.NewCoordinator(collab, nil)
	c.NewID = func() string { return "sub-1" }

	s := readySession(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	status, err := c.Submit(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, form.Succeeded(), status)
	assert.Equal(t, form.Succeeded(), s.Status())
	assert.EqualValues(t, 1, collab.calls.Load())
	assert.Equal(t, "sub-1", collab.last.ID)
	assert.Equal(t, "shift", collab.last.Form)
	assert.Equal(t, "/api/shifts", collab.last.Endpoint)
	assert.Equal(t, "Release night", collab.last.Payload["reason"])
	assert.Len(t, rec.notices(), 1)

	// Succeeded is terminal.
	assert.False(t, s.CanSubmit())
	_, err = c.Submit(context.Background(), s)
	assert.ErrorIs(t, err, form.ErrAlreadySubmitted)
	assert.ErrorIs(t, s.SetField("reason", "changed"), form.ErrAlreadySubmitted)
	assert.EqualValues(t, 1, collab.calls.Load())
}

func TestSubmit_IncompleteSendsNothing(t *testing.T) {
	// GIVEN: a form on step one with nothing entered
	collab := &countingCollaborator{reply: form.Reply{Successful: true}}
	c := form.NewCoordinator(collab, nil)
	s := form.NewSession("s1", shiftForm(t))
	rec := &recorder{}
	s.Subscribe(rec.listen)

	// WHEN: submit is pressed
	status, err := c.Submit(context.Background(), s)

	// THEN: no call, status unchanged, one warning notice
	assert.ErrorIs(t, err, form.ErrIncomplete)
	assert.Equal(t, form.Idle(), status)
	assert.Zero(t, collab.calls.Load())
	assert.Equal(t, []form.Notice{{Level: form.NoticeWarning, Message: form.IncompleteNotice}}, rec.notices())
}

func TestSubmit_RejectionKeepsValues(t *testing.T) {
	collab := &countingCollaborator{reply: form.Reply{Successful: false, Message: "Insufficient leave balance"}}
	c := form.NewCoordinator(collab, nil)
	s := readySession(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	status, err := c.Submit(context.Background(), s)

	var rejected *form.SubmissionRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.ErrorIs(t, err, form.ErrSubmissionFailed)
	assert.Equal(t, form.Failed("Insufficient leave balance"), status)
	assert.Equal(t, "Release night", s.Snapshot().Values["reason"])
	assert.Equal(t, []form.Notice{{Level: form.NoticeError, Message: "Insufficient leave balance"}}, rec.notices())
}

func TestSubmit_RejectionWithoutMessageUsesGenericReason(t *testing.T) {
	c := form.NewCoordinator(&countingCollaborator{}, nil)
	status, err := c.Submit(context.Background(), readySession(t))

	assert.ErrorIs(t, err, form.ErrSubmissionFailed)
	assert.Equal(t, form.Failed(form.GenericFailureReason), status)
}

func TestSubmit_TransportFailureThenRetry(t *testing.T) {
	// GIVEN: the first call fails on the network
	collab := &countingCollaborator{err: errors.New("connection refused")}
	c := form.NewCoordinator(collab, nil)
	s := readySession(t)

	status, err := c.Submit(context.Background(), s)

	var transport *form.TransportFailureError
	require.True(t, errors.As(err, &transport))
	assert.True(t, form.IsRetryable(err))
	assert.Equal(t, form.Failed("connection refused"), status)
	assert.True(t, s.CanSubmit(), "failed sessions may be resubmitted")

	// WHEN: the backend recovers and the user retries
	collab.err = nil
	collab.reply = form.Reply{Successful: true}
	status, err = c.Submit(context.Background(), s)

	// THEN: exactly one more call, now succeeded
	require.NoError(t, err)
	assert.Equal(t, form.Succeeded(), status)
	assert.EqualValues(t, 2, collab.calls.Load())
}

// =============================================================================
// SINGLE-FLIGHT
// =============================================================================

func TestSubmit_ConcurrentCallsShareOneRequest(t *testing.T) {
	gate := newGated()
	c := form.NewCoordinator(gate, nil)
	s := readySession(t)

	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := c.Submit(context.Background(), s)
			results <- err
		}()
	}

	<-gate.entered
	assert.Equal(t, form.StateSubmitting, s.Status().State)
	assert.False(t, s.CanSubmit())

	// Give the other callers time to pile up behind the first.
	time.Sleep(20 * time.Millisecond)
	close(gate.release)

	for i := 0; i < 5; i++ {
		err := <-results
		if err != nil {
			// Latecomers that missed the shared flight find the session
			// already succeeded.
			assert.ErrorIs(t, err, form.ErrAlreadySubmitted)
		}
	}
	assert.EqualValues(t, 1, gate.calls.Load())
	assert.Equal(t, form.Succeeded(), s.Status())
}

func TestSubmit_NoStepBackWhileSubmitting(t *testing.T) {
	gate := newGated()
	c := form.NewCoordinator(gate, nil)
	s := readySession(t)
	last := s.Snapshot().Step

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), s)
		done <- err
	}()
	<-gate.entered

	assert.False(t, s.GoPrevious())
	assert.Equal(t, last, s.Snapshot().Step)

	close(gate.release)
	require.NoError(t, <-done)
	assert.False(t, s.GoPrevious(), "succeeded is terminal")
}

func TestSubmit_SecondCoordinatorSeesInFlight(t *testing.T) {
	gate := newGated()
	first := form.NewCoordinator(gate, nil)
	second := form.NewCoordinator(gate, nil)
	s := readySession(t)

	done := make(chan error, 1)
	go func() {
		_, err := first.Submit(context.Background(), s)
		done <- err
	}()
	<-gate.entered

	_, err := second.Submit(context.Background(), s)
	assert.ErrorIs(t, err, form.ErrSubmitInFlight)
	assert.True(t, form.IsConflict(err))

	close(gate.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, gate.calls.Load())
}

// =============================================================================
// STALE RESULTS
// =============================================================================

func TestSubmit_ResultAfterResetIsDropped(t *testing.T) {
	gate := newGated()
	c := form.NewCoordinator(gate, nil)
	s := readySession(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), s)
		done <- err
	}()
	<-gate.entered

	s.Reset()
	close(gate.release)

	assert.ErrorIs(t, <-done, form.ErrStaleSession)
	assert.Equal(t, form.Idle(), s.Status(), "reset state survives the late reply")
	assert.Empty(t, s.Snapshot().Values)
}

func TestSubmit_ResultAfterCloseIsDropped(t *testing.T) {
	gate := newGated()
	c := form.NewCoordinator(gate, nil)
	s := readySession(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), s)
		done <- err
	}()
	<-gate.entered

	s.Close()
	close(gate.release)

	assert.ErrorIs(t, <-done, form.ErrStaleSession)
	assert.Empty(t, rec.notices(), "no notice for an abandoned session")
}

func TestSubmit_PayloadBuilderError(t *testing.T) {
	def, err := form.NewBuilder("broken", "Broken").
		Payload(func(form.Values) (form.Payload, error) { return nil, errors.New("boom") }).
		Step("Only", form.Field{Name: "note", Required: true}).
		Build()
	require.NoError(t, err)

	collab := &countingCollaborator{reply: form.Reply{Successful: true}}
	c := form.NewCoordinator(collab, nil)
	s := form.NewSession("s1", def)
	require.NoError(t, s.SetField("note", "x"))

	status, err := c.Submit(context.Background(), s)

	assert.Error(t, err)
	assert.Equal(t, form.Failed(form.GenericFailureReason), status)
	assert.Zero(t, collab.calls.Load())
}
