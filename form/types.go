/*
Package form provides the stepped form engine.

PURPOSE:
  A framework-independent controller for multi-step data-entry forms. It
  holds field values, runs declarative validators, moves a step pointer
  forward and backward, and drives a single submission against an external
  request collaborator. The same engine serves the leave, overtime,
  reimbursement and training enrollment forms.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind:     The type of a field value (string, number, boolean, date, time)
  - Values:   The raw values entered so far, keyed by field name
  - Status:   Submission lifecycle (idle, submitting, succeeded, failed)
  - Snapshot: A copy of a session's state handed to observers

STATUS MACHINE:
  idle ──submit──▶ submitting ──ok──────▶ succeeded (terminal until reset)
                        │
                        └──rejected/error──▶ failed ──submit──▶ submitting

VALUE REPRESENTATION:
  Values are stored as entered: strings for text, dates ("YYYY-MM-DD") and
  times ("HH:mm"), float64/json.Number/decimal for numbers, bool for flags.
  Helpers on Values convert on read so validators and payload builders see
  one representation.

SEE ALSO:
  - validator.go: Field validators
  - step.go: Step and Definition model
  - session.go: The form state store
  - submit.go: Submission coordinator
*/
package form

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND - Field value types
// =============================================================================

type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindDate   Kind = "date"
	KindTime   Kind = "time"
)

// Wire formats for dates and times. Backends expect these exact layouts.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBool, KindDate, KindTime:
		return true
	}
	return false
}

// =============================================================================
// VALUES - Raw field values keyed by field name
// =============================================================================

type Values map[string]any

// Clone returns a shallow copy. Stored values are immutable scalars.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// String renders a value as text. Missing values render as "".
func (v Values) String(name string) string {
	return toString(v[name])
}

// Decimal parses a numeric value.
func (v Values) Decimal(name string) (decimal.Decimal, bool) {
	return ToDecimal(v[name])
}

// Bool reads a boolean value. Strings "true"/"false" are accepted.
func (v Values) Bool(name string) (bool, bool) {
	return toBool(v[name])
}

// Date parses a "YYYY-MM-DD" value.
func (v Values) Date(name string) (time.Time, bool) {
	return parseDate(v[name])
}

// TimeOfDay parses a "HH:mm" value.
func (v Values) TimeOfDay(name string) (TimeOfDay, bool) {
	s, ok := v[name].(string)
	if !ok {
		return TimeOfDay{}, false
	}
	t, err := ParseTimeOfDay(s)
	return t, err == nil
}

// IsEmpty reports whether a value counts as "not entered":
// nil, a blank string, or NaN.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case json.Number:
		return strings.TrimSpace(string(v)) == ""
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	}
	return false
}

// ToDecimal converts any supported numeric representation to a decimal.
func ToDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(strings.TrimSpace(string(v)))
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return string(v)
	case decimal.Decimal:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func toBool(value any) (bool, bool) {
	switch b := value.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}

func parseDate(value any) (time.Time, bool) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	return t, err == nil
}

// =============================================================================
// STATUS - Submission lifecycle
// =============================================================================

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Status is the submission status of a session. Reason is set only for
// StateFailed.
type Status struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func Idle() Status { return Status{State: StateIdle} }
func Submitting() Status { return Status{State: StateSubmitting} }
func Succeeded() Status { return Status{State: StateSucceeded} }
func Failed(reason string) Status { return Status{State: StateFailed, Reason: reason} }

func (s Status) String() string {
	if s.State == StateFailed && s.Reason != "" {
		return string(s.State) + ": " + s.Reason
	}
	return string(s.State)
}

// =============================================================================
// SNAPSHOT & EVENTS - What observers see
// =============================================================================

// ValidationErrors maps a field name to its current error message.
type ValidationErrors map[string]string

func (e ValidationErrors) clone() ValidationErrors {
	out := make(ValidationErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	SessionID string
	Form      string
	Step      int // zero-based
	StepCount int
	StepLabel string
	Values    Values
	Errors    ValidationErrors
	Status    Status
	CanSubmit bool
}

type EventKind string

const (
	EventState  EventKind = "state"
	EventNotice EventKind = "notice"
	EventClosed EventKind = "closed"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message for the user (a toast or snackbar).
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Event is delivered to session listeners after every change.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Notice   *Notice
}

// Listener receives session events. It is called outside the session lock
// and may call back into the session.
type Listener func(Event)
