/*
step.go - Step and form definition model

PURPOSE:
  A Definition is the static description of one form: its ordered steps,
  the fields each step owns, the validators attached to each field and the
  payload mapping used on submit. Definitions are built once (in Go with
  the Builder, or from a YAML document, see schema.go) and shared by every
  session of that form.

STRUCTURE:
  Definition
    ├── Step 1 "Leave Details"  [leaveType, startDate, endDate]
    └── Step 2 "Reason"         [reason]

  Every field belongs to exactly one step. A step is complete when every
  field it owns validates.

DEPENDENCIES:
  Cross-field rules (end date not before start date) and derived fields
  (total hours from start/end time) declare the fields they read. The
  definition inverts those edges so a change to startDate re-validates
  endDate, and a change to startTime recomputes totalHours.

SEE ALSO:
  - validator.go: Validators referenced by fields
  - session.go: Runtime state driven by a Definition
  - schema.go: YAML documents that produce Definitions
*/
package form

import (
	"fmt"
	"strings"
)

// =============================================================================
// FIELD
// =============================================================================

type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Options  []string // allowed values, empty = any

	// Rules run after the required and kind checks, in order.
	Rules []Validator

	// DependsOn lists sibling fields read by Rules.
	DependsOn []string

	// Derive makes the field computed and read-only.
	Derive *Derivation
}

func (f *Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func (f *Field) Derived() bool { return f.Derive != nil }

// Validate checks the field's current value in all.
func (f *Field) Validate(all Values) Result {
	value := all[f.Name]
	label := f.DisplayLabel()

	if IsEmpty(value) {
		if f.Required {
			return Required(label)(f.Name, value, all)
		}
		return Pass()
	}

	checks := make([]Validator, 0, len(f.Rules)+2)
	checks = append(checks, OfKind(f.Kind, label))
	if len(f.Options) > 0 {
		checks = append(checks, OneOf(label, f.Options))
	}
	checks = append(checks, f.Rules...)

	return Chain(checks...)(f.Name, value, all)
}

// =============================================================================
// STEP
// =============================================================================

// Step is one page of a form. Position is one-based.
type Step struct {
	Position int
	Label    string
	fields   []*Field
}

// Fields returns the names of the fields this step owns.
func (s Step) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// IsComplete reports whether every owned field validates.
func (s Step) IsComplete(values Values) bool {
	for _, f := range s.fields {
		if !f.Validate(values).OK {
			return false
		}
	}
	return true
}

func (s Step) validate(values Values) ValidationErrors {
	errs := ValidationErrors{}
	for _, f := range s.fields {
		if r := f.Validate(values); !r.OK {
			errs[f.Name] = r.Message
		}
	}
	return errs
}

// =============================================================================
// DEFINITION
// =============================================================================

type Definition struct {
	id       string
	title    string
	endpoint string

	steps      []Step
	fields     map[string]*Field
	order      []string
	dependents map[string][]string
	payload    PayloadBuilder
}

func (d *Definition) ID() string { return d.id }
func (d *Definition) Title() string { return d.title }
func (d *Definition) Endpoint() string { return d.endpoint }
func (d *Definition) StepCount() int { return len(d.steps) }

// Steps returns the steps in order.
func (d *Definition) Steps() []Step {
	out := make([]Step, len(d.steps))
	copy(out, d.steps)
	return out
}

// Step returns the step at a zero-based index.
func (d *Definition) Step(index int) (Step, bool) {
	if index < 0 || index >= len(d.steps) {
		return Step{}, false
	}
	return d.steps[index], true
}

func (d *Definition) Field(name string) (*Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// Fields returns every field in declaration order.
func (d *Definition) Fields() []*Field {
	out := make([]*Field, len(d.order))
	for i, name := range d.order {
		out[i] = d.fields[name]
	}
	return out
}

// IsComplete reports whether every step is complete.
func (d *Definition) IsComplete(values Values) bool {
	for _, s := range d.steps {
		if !s.IsComplete(values) {
			return false
		}
	}
	return true
}

// Validate runs every field validator and returns the failures.
func (d *Definition) Validate(values Values) ValidationErrors {
	errs := ValidationErrors{}
	for _, s := range d.steps {
		for name, msg := range s.validate(values) {
			errs[name] = msg
		}
	}
	return errs
}

// BuildPayload maps values to the request payload.
func (d *Definition) BuildPayload(values Values) (Payload, error) {
	if d.payload == nil {
		return DefaultPayload(d, values), nil
	}
	return d.payload(values)
}

// affected returns the fields that must be recomputed or re-validated when
// name changes, in dependency order, excluding name itself.
func (d *Definition) affected(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range d.dependents[current] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// DefaultPayload copies every non-empty value under its field name.
func DefaultPayload(d *Definition, values Values) Payload {
	p := Payload{}
	for _, name := range d.order {
		if v, ok := values[name]; ok && !IsEmpty(v) {
			p[name] = v
		}
	}
	return p
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder assembles a Definition. Errors are collected and reported by
// Build.
//
//	def, err := form.NewBuilder("leave", "Leave Request").
//	    Endpoint("/api/employee/leave-requests").
//	    Step("Leave Details", form.Field{Name: "startDate", Kind: form.KindDate, Required: true}).
//	    Build()
type Builder struct {
	def  *Definition
	errs []string
}

func NewBuilder(id, title string) *Builder {
	return &Builder{
		def: &Definition{
			id:         strings.TrimSpace(id),
			title:      title,
			fields:     make(map[string]*Field),
			dependents: make(map[string][]string),
		},
	}
}

func (b *Builder) Endpoint(path string) *Builder {
	b.def.endpoint = path
	return b
}

func (b *Builder) Payload(fn PayloadBuilder) *Builder {
	b.def.payload = fn
	return b
}

// Step appends a step owning the given fields.
func (b *Builder) Step(label string, fields ...Field) *Builder {
	step := Step{Position: len(b.def.steps) + 1, Label: label}
	if len(fields) == 0 {
		b.errs = append(b.errs, fmt.Sprintf("step %d (%s) has no fields", step.Position, label))
	}

	for i := range fields {
		f := fields[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			b.errs = append(b.errs, fmt.Sprintf("step %d (%s) has a field without a name", step.Position, label))
			continue
		}
		if _, dup := b.def.fields[f.Name]; dup {
			b.errs = append(b.errs, fmt.Sprintf("duplicate field %q", f.Name))
			continue
		}
		if f.Kind == "" {
			f.Kind = KindString
		}
		if !f.Kind.Valid() {
			b.errs = append(b.errs, fmt.Sprintf("field %q has unknown kind %q", f.Name, f.Kind))
		}

		b.def.fields[f.Name] = &f
		b.def.order = append(b.def.order, f.Name)
		step.fields = append(step.fields, &f)
	}

	b.def.steps = append(b.def.steps, step)
	return b
}

// Build validates the definition and links field dependencies.
func (b *Builder) Build() (*Definition, error) {
	d := b.def
	errs := append([]string(nil), b.errs...)

	if d.id == "" {
		errs = append(errs, "definition id is required")
	}
	if len(d.steps) == 0 {
		errs = append(errs, "definition has no steps")
	}

	for _, name := range d.order {
		f := d.fields[name]
		for _, dep := range f.DependsOn {
			if _, ok := d.fields[dep]; !ok || dep == name {
				errs = append(errs, fmt.Sprintf("field %q depends on unknown field %q", name, dep))
				continue
			}
			d.dependents[dep] = append(d.dependents[dep], name)
		}
		if f.Derive == nil {
			continue
		}
		if f.Derive.Compute == nil {
			errs = append(errs, fmt.Sprintf("field %q has a derivation without Compute", name))
		}
		for _, src := range f.Derive.From {
			if _, ok := d.fields[src]; !ok || src == name {
				errs = append(errs, fmt.Sprintf("field %q derives from unknown field %q", name, src))
				continue
			}
			d.dependents[src] = append(d.dependents[src], name)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %q: %s", ErrInvalidDefinition, d.id, strings.Join(errs, "; "))
	}
	return d, nil
}
