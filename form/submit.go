/*
submit.go - Submission coordinator

PURPOSE:
  Turns a complete session into exactly one call to the external request
  collaborator and maps the outcome back into the session's status.

SUBMIT FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Submit ──▶ CanSubmit? ──no──▶ notice "Please complete all       │
  │                │               required fields" (nothing sent)   │
  │               yes                                                │
  │                ▼                                                 │
  │           Submitting ──▶ build payload ──▶ collaborator call     │
  │                                                 │                │
  │                          ┌──────────────────────┼───────────┐    │
  │                          ▼                      ▼           ▼    │
  │                      Succeeded           Failed(message) Failed( │
  │                                           (rejected)     error)  │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

SINGLE-FLIGHT:
  Two layers keep one request per session on the wire:
  - The session itself refuses a second beginSubmit while Submitting.
  - Calls through the same Coordinator are collapsed with singleflight,
    so a double-click waits for and shares the first call's result
    instead of failing.

FAILURES:
  Rejections (Successful=false) and transport errors both end in
  Failed(reason). Values are kept, one error notice is published, and
  nothing is retried automatically.

SEE ALSO:
  - session.go: beginSubmit / finishSubmit
  - client/client.go: HTTP collaborator
  - api/sandbox.go: In-process collaborator
*/
package form

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/warp/workforce-hub/logger"
)

// =============================================================================
// COLLABORATOR CONTRACT
// =============================================================================

// Payload is the JSON object sent to the backend.
type Payload map[string]any

// PayloadBuilder maps session values to a payload. It must be pure.
type PayloadBuilder func(values Values) (Payload, error)

// Submission is one request handed to the collaborator. ID doubles as the
// idempotency key.
type Submission struct {
	ID       string
	Form     string
	Endpoint string
	Payload  Payload
}

// Reply is the backend's answer.
type Reply struct {
	Successful bool   `json:"successful"`
	Message    string `json:"message,omitempty"`
}

// Collaborator sends submissions to the backend. An error means the call
// itself failed; a backend refusal is a Reply with Successful=false.
type Collaborator interface {
	SubmitRequest(ctx context.Context, sub Submission) (Reply, error)
}

type CollaboratorFunc func(ctx context.Context, sub Submission) (Reply, error)

func (f CollaboratorFunc) SubmitRequest(ctx context.Context, sub Submission) (Reply, error) {
	return f(ctx, sub)
}

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	collaborator Collaborator
	log          logger.Logger
	flights      singleflight.Group

	// NewID generates submission ids. Defaults to random UUIDs.
	NewID func() string
}

func NewCoordinator(collaborator Collaborator, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		collaborator: collaborator,
		log:          log,
		NewID:        uuid.NewString,
	}
}

// Submit sends the session's values if the form can be submitted and
// returns the resulting status. The error is nil only on success.
func (c *Coordinator) Submit(ctx context.Context, s *Session) (Status, error) {
	v, err, shared := c.flights.Do(s.ID(), func() (any, error) {
		return c.submit(ctx, s)
	})
	if shared {
		c.log.Debugw("joined in-flight submission", "session_id", s.ID())
	}
	status, _ := v.(Status)
	return status, err
}

func (c *Coordinator) submit(ctx context.Context, s *Session) (Status, error) {
	t, err := s.beginSubmit()
	if err != nil {
		if errors.Is(err, ErrIncomplete) {
			s.Notify(Notice{Level: NoticeWarning, Message: IncompleteNotice})
		}
		return s.Status(), err
	}

	def := s.Definition()
	log := c.log

	payload, err := def.BuildPayload(t.values)
	if err != nil {
		log.Errorw("failed to build payload", "session_id", s.ID(), "form", def.ID(), "error", err)
		return c.finish(s, t, Failed(GenericFailureReason), err)
	}

	sub := Submission{
		ID:       c.NewID(),
		Form:     def.ID(),
		Endpoint: def.Endpoint(),
		Payload:  payload,
	}

	log.Infow("submitting request", "session_id", s.ID(), "form", sub.Form, "submission_id", sub.ID)

	reply, callErr := c.collaborator.SubmitRequest(ctx, sub)
	switch {
	case callErr != nil:
		log.Warnw("submission transport failure", "session_id", s.ID(), "submission_id", sub.ID, "error", callErr)
		return c.finish(s, t, Failed(failureReason(callErr.Error())), &TransportFailureError{Err: callErr})
	case !reply.Successful:
		log.Warnw("submission rejected", "session_id", s.ID(), "submission_id", sub.ID, "message", reply.Message)
		return c.finish(s, t, Failed(failureReason(reply.Message)), &SubmissionRejectedError{Message: reply.Message})
	default:
		log.Infow("submission accepted", "session_id", s.ID(), "submission_id", sub.ID)
		return c.finish(s, t, Succeeded(), nil)
	}
}

func (c *Coordinator) finish(s *Session, t ticket, status Status, cause error) (Status, error) {
	if err := s.finishSubmit(t, status); err != nil {
		c.log.Infow("dropping result for stale session", "session_id", s.ID(), "status", status.String())
		return status, err
	}

	if status.State == StateFailed {
		s.Notify(Notice{Level: NoticeError, Message: status.Reason})
	} else {
		s.Notify(Notice{Level: NoticeInfo, Message: "Request submitted"})
	}
	return status, cause
}

func failureReason(message string) string {
	if m := strings.TrimSpace(message); m != "" {
		return m
	}
	return GenericFailureReason
}
