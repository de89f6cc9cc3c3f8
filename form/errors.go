/*
errors.go - Centralized error types for the form engine

PURPOSE:
  All error types in one place. Local errors (validation, navigation) never
  leave the session; remote errors (rejection, transport) are mapped to the
  Failed status and surfaced once as a notice.

ERROR CATEGORIES:
  1. Definition errors - Malformed form definitions (build time)
  2. Input errors      - Unknown or read-only fields, incomplete steps
  3. Submission errors - In-flight guard, rejection, transport failure

USAGE:
  if errors.Is(err, form.ErrSubmissionFailed) {
      // rejected or transport failure, values are kept for retry
  }

SEE ALSO:
  - session.go: Returns input errors
  - submit.go: Returns submission errors
*/
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDefinition is returned when a definition cannot be built.
	ErrInvalidDefinition = errors.New("invalid form definition")

	// ErrUnknownField is returned when a field name is not part of the form.
	ErrUnknownField = errors.New("unknown field")

	// ErrReadOnlyField is returned when setting a derived field.
	ErrReadOnlyField = errors.New("field is derived and cannot be set")

	// ErrStepIncomplete is returned when the current step has invalid fields.
	ErrStepIncomplete = errors.New("step has invalid fields")

	// ErrIncomplete is returned when submit is attempted before the form is
	// complete. Nothing is sent.
	ErrIncomplete = errors.New("form is incomplete")

	// ErrSubmitInFlight is returned when a submission is already running.
	ErrSubmitInFlight = errors.New("submission already in progress")

	// ErrAlreadySubmitted is returned when the session already succeeded.
	ErrAlreadySubmitted = errors.New("form already submitted")

	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrStaleSession is returned when a submission result arrives after the
	// session was reset or closed. The result is dropped.
	ErrStaleSession = errors.New("session changed while submission was in flight")

	// ErrSubmissionFailed is the parent of rejection and transport errors.
	ErrSubmissionFailed = errors.New("submission failed")
)

// IncompleteNotice is shown when submit is pressed on an incomplete form.
const IncompleteNotice = "Please complete all required fields"

// GenericFailureReason is used when the backend gives no message.
const GenericFailureReason = "Submission failed. Please try again."

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StepIncompleteError lists the fields that blocked a forward transition.
type StepIncompleteError struct {
	Step   int // one-based position
	Label  string
	Errors ValidationErrors
}

func (e *StepIncompleteError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("step %d (%s) has invalid fields: %s", e.Step, e.Label, strings.Join(fields, ", "))
}

func (e *StepIncompleteError) Unwrap() error {
	return ErrStepIncomplete
}

// SubmissionRejectedError means the backend answered with a non-success
// status.
type SubmissionRejectedError struct {
	Message string
}

func (e *SubmissionRejectedError) Error() string {
	if e.Message == "" {
		return "submission rejected"
	}
	return "submission rejected: " + e.Message
}

func (e *SubmissionRejectedError) Unwrap() error {
	return ErrSubmissionFailed
}

// TransportFailureError means the collaborator call itself failed
// (network error, timeout).
type TransportFailureError struct {
	Err error
}

func (e *TransportFailureError) Error() string {
	return "submission transport failure: " + e.Err.Error()
}

func (e *TransportFailureError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to user input or
// navigation and can be fixed by the user.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrReadOnlyField) ||
		errors.Is(err, ErrStepIncomplete) ||
		errors.Is(err, ErrIncomplete)
}

// IsConflict returns true if the error is caused by the session's current
// lifecycle state rather than its contents.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSubmitInFlight) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrStaleSession)
}

// IsRetryable returns true if resubmitting the same values might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSubmissionFailed)
}
