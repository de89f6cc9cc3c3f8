/*
session.go - Form state store

PURPOSE:
  A Session is the complete mutable state of one in-progress form: the
  current step, the values entered so far, the per-field error map and the
  submission status. All user actions go through its methods; observers
  subscribe to receive a Snapshot after every change.

OPERATIONS:
  SetField(name, value)  store value, recompute derived fields, re-validate
                         the field and every field that depends on it
  GoNext()               validate the current step, advance if clean
  GoPrevious()           step back, never validates
  CanSubmit()            last step AND all steps complete AND not in flight
  Reset()                clear everything, back to step 0 / idle
  Close()                abandon the session (navigation away)

INVARIANTS:
  - 0 <= step < StepCount at all times
  - Errors holds an entry only while that field fails
  - At most one submission in flight (see beginSubmit)
  - Succeeded is terminal: only Reset leaves it

GENERATIONS:
  Reset and Close bump a generation counter. A submission records the
  generation it started in; a result that comes back under a different
  generation belongs to a session that no longer exists and is dropped.

CONCURRENCY:
  Methods are safe for concurrent use. Listeners run outside the lock.

SEE ALSO:
  - step.go: Definition driving the session
  - submit.go: Coordinator calling beginSubmit/finishSubmit
*/
package form

import (
	"fmt"
	"sync"
	"time"
)

type Session struct {
	id  string
	def *Definition

	mu           sync.Mutex
	step         int
	values       Values
	errors       ValidationErrors
	status       Status
	generation   uint64
	closed       bool
	lastActivity time.Time

	listeners    map[int]Listener
	nextListener int
}

// NewSession starts an idle session at step 0.
func NewSession(id string, def *Definition) *Session {
	return &Session{
		id:           id,
		def:          def,
		values:       Values{},
		errors:       ValidationErrors{},
		status:       Idle(),
		lastActivity: time.Now(),
		listeners:    make(map[int]Listener),
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Definition() *Definition { return s.def }

// =============================================================================
// FIELD EDITS
// =============================================================================

// SetField stores a value and re-validates the field and its dependents.
// Intermediate invalid values are accepted; they only produce errors.
func (s *Session) SetField(name string, value any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.status.State == StateSucceeded {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	field, ok := s.def.fields[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if field.Derived() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	}

	if value == nil {
		delete(s.values, name)
	} else {
		s.values[name] = value
	}
	s.revalidateLocked(field)

	for _, dep := range s.def.affected(name) {
		depField := s.def.fields[dep]
		if depField.Derived() {
			if v, ok := depField.Derive.Compute(s.values); ok {
				s.values[dep] = v
			} else {
				delete(s.values, dep)
			}
		}
		// Untouched dependents stay quiet until the user reaches them.
		if IsEmpty(s.values[dep]) {
			delete(s.errors, dep)
			continue
		}
		s.revalidateLocked(depField)
	}

	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventState, nil)
	return nil
}

func (s *Session) revalidateLocked(f *Field) {
	if r := f.Validate(s.values); r.OK {
		delete(s.errors, f.Name)
	} else {
		s.errors[f.Name] = r.Message
	}
}

// =============================================================================
// STEP TRANSITIONS
// =============================================================================

// GoNext validates every field of the current step. On failure the errors
// are recorded and a *StepIncompleteError is returned; otherwise the step
// advances, staying on the last step when already there.
func (s *Session) GoNext() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.status.State == StateSucceeded {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}

	current := s.def.steps[s.step]
	errs := current.validate(s.values)
	for _, name := range current.Fields() {
		if msg, failed := errs[name]; failed {
			s.errors[name] = msg
		} else {
			delete(s.errors, name)
		}
	}

	var err error
	if len(errs) > 0 {
		err = &StepIncompleteError{Step: current.Position, Label: current.Label, Errors: errs}
	} else if s.step < len(s.def.steps)-1 {
		s.step++
	}

	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventState, nil)
	return err
}

// GoPrevious moves back one step without validating. It returns false at
// the first step, on a closed session, and while a submission is running or
// has succeeded, so a submitting session always sits on its last step.
func (s *Session) GoPrevious() bool {
	s.mu.Lock()
	if s.closed || s.step == 0 || s.status.State == StateSubmitting || s.status.State == StateSucceeded {
		s.mu.Unlock()
		return false
	}
	s.step--
	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventState, nil)
	return true
}

// =============================================================================
// SUBMISSION STATE
// =============================================================================

// CanSubmit reports whether a submit would reach the collaborator.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	if s.closed {
		return false
	}
	if s.status.State == StateSubmitting || s.status.State == StateSucceeded {
		return false
	}
	return s.step == len(s.def.steps)-1 && s.def.IsComplete(s.values)
}

// ticket identifies one submission attempt.
type ticket struct {
	generation uint64
	values     Values
}

// beginSubmit moves the session to Submitting and returns the values to
// send. Only one caller can hold a ticket at a time.
func (s *Session) beginSubmit() (ticket, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ticket{}, ErrSessionClosed
	case s.status.State == StateSubmitting:
		s.mu.Unlock()
		return ticket{}, ErrSubmitInFlight
	case s.status.State == StateSucceeded:
		s.mu.Unlock()
		return ticket{}, ErrAlreadySubmitted
	case !s.canSubmitLocked():
		s.mu.Unlock()
		return ticket{}, ErrIncomplete
	}

	s.status = Submitting()
	t := ticket{generation: s.generation, values: s.values.Clone()}
	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventState, nil)
	return t, nil
}

// finishSubmit records the outcome of a ticket. A ticket from an earlier
// generation changes nothing and returns ErrStaleSession.
func (s *Session) finishSubmit(t ticket, status Status) error {
	s.mu.Lock()
	if s.closed || s.generation != t.generation || s.status.State != StateSubmitting {
		s.mu.Unlock()
		return ErrStaleSession
	}
	s.status = status
	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventState, nil)
	return nil
}

// Status returns the current submission status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Reset clears values and errors, returns to step 0 and idle. Any
// submission still in flight is orphaned.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.step = 0
	s.values = Values{}
	s.errors = ValidationErrors{}
	s.status = Idle()
	s.generation++
	s.touchLocked()
	s.mu.Unlock()

	s.emit(EventState, nil)
}

// Close abandons the session. Listeners receive a final EventClosed and
// are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	s.emit(EventClosed, nil)

	s.mu.Lock()
	s.listeners = make(map[int]Listener)
	s.mu.Unlock()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LastActivity returns when the session last changed.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touchLocked() {
	s.lastActivity = time.Now()
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	current := s.def.steps[s.step]
	return Snapshot{
		SessionID: s.id,
		Form:      s.def.id,
		Step:      s.step,
		StepCount: len(s.def.steps),
		StepLabel: current.Label,
		Values:    s.values.Clone(),
		Errors:    s.errors.clone(),
		Status:    s.status,
		CanSubmit: s.canSubmitLocked(),
	}
}

// Subscribe registers a listener and returns a function removing it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Notify publishes a transient notice to listeners.
func (s *Session) Notify(n Notice) {
	s.emit(EventNotice, &n)
}

func (s *Session) emit(kind EventKind, notice *Notice) {
	s.mu.Lock()
	ev := Event{Kind: kind, Snapshot: s.snapshotLocked(), Notice: notice}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}
