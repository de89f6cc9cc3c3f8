/*
schema.go - YAML form documents

PURPOSE:
  Form definitions are data. Each form is described by a YAML document
  listing its steps, fields, rules and derivations; this file turns those
  documents into Definitions. Payload mapping stays in Go and is attached
  by form id.

DOCUMENT FORMAT:
  id: overtime
  title: Overtime Request
  endpoint: /api/employee/overtime-requests
  steps:
    - label: Schedule
      fields:
        - name: startTime
          label: Start Time
          kind: time
          required: true
        - name: totalHours
          label: Total Hours
          kind: number
          required: true
          derive: {rule: elapsed_hours, from: [startTime, endTime]}
          rules:
            - rule: positive

RULES:
  required      same as required: true
  positive      number greater than zero
  max_decimals  at most `places` fractional digits (default 2)
  min_length    trimmed length >= min (default 5)
  not_before    date not before the date in `field`
  accepted      boolean must be true
  Every rule accepts `message` to override its failure text.

SEE ALSO:
  - step.go: Builder used to assemble the Definition
  - requests/forms/: The HR form documents
*/
package form

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

type Document struct {
	ID       string         `yaml:"id"`
	Title    string         `yaml:"title"`
	Endpoint string         `yaml:"endpoint"`
	Steps    []StepDocument `yaml:"steps"`
}

type StepDocument struct {
	Label  string          `yaml:"label"`
	Fields []FieldDocument `yaml:"fields"`
}

type FieldDocument struct {
	Name     string          `yaml:"name"`
	Label    string          `yaml:"label"`
	Kind     Kind            `yaml:"kind"`
	Required bool            `yaml:"required"`
	Options  []string        `yaml:"options"`
	Rules    []RuleDocument  `yaml:"rules"`
	Derive   *DeriveDocument `yaml:"derive"`
}

type RuleDocument struct {
	Rule    string `yaml:"rule"`
	Field   string `yaml:"field"`
	Min     int    `yaml:"min"`
	Places  int    `yaml:"places"`
	Message string `yaml:"message"`
}

type DeriveDocument struct {
	Rule string   `yaml:"rule"`
	From []string `yaml:"from"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseDefinition builds a Definition from one YAML document. payload may
// be nil, in which case DefaultPayload is used.
func ParseDefinition(data []byte, payload PayloadBuilder) (*Definition, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return doc.Definition(payload)
}

// Definition converts the document into a Definition.
func (doc Document) Definition(payload PayloadBuilder) (*Definition, error) {
	labels := make(map[string]string)
	for _, s := range doc.Steps {
		for _, f := range s.Fields {
			labels[f.Name] = f.Label
			if f.Label == "" {
				labels[f.Name] = f.Name
			}
		}
	}

	b := NewBuilder(doc.ID, doc.Title).Endpoint(doc.Endpoint).Payload(payload)
	for _, s := range doc.Steps {
		fields := make([]Field, 0, len(s.Fields))
		for _, fd := range s.Fields {
			f, err := fd.field(labels)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrInvalidDefinition, doc.ID, err)
			}
			fields = append(fields, f)
		}
		b.Step(s.Label, fields...)
	}
	return b.Build()
}

func (fd FieldDocument) field(labels map[string]string) (Field, error) {
	f := Field{
		Name:     fd.Name,
		Label:    fd.Label,
		Kind:     fd.Kind,
		Required: fd.Required,
		Options:  append([]string(nil), fd.Options...),
	}
	label := f.DisplayLabel()

	for _, rd := range fd.Rules {
		var v Validator
		switch rd.Rule {
		case "required":
			f.Required = true
			continue
		case "positive":
			v = Positive(label)
		case "max_decimals":
			n := rd.Places
			if n <= 0 {
				n = DefaultDecimalPlaces
			}
			v = MaxDecimals(label, n)
		case "min_length":
			n := rd.Min
			if n <= 0 {
				n = DefaultMinLength
			}
			v = MinLength(label, n)
		case "not_before":
			other, ok := labels[rd.Field]
			if rd.Field == "" || !ok {
				return Field{}, fmt.Errorf("field %q: not_before references unknown field %q", fd.Name, rd.Field)
			}
			v = NotBefore(label, rd.Field, other)
			f.DependsOn = append(f.DependsOn, rd.Field)
		case "accepted":
			v = Accepted(label)
		default:
			return Field{}, fmt.Errorf("field %q: unknown rule %q", fd.Name, rd.Rule)
		}
		if rd.Message != "" {
			v = WithMessage(v, rd.Message)
		}
		f.Rules = append(f.Rules, v)
	}

	if fd.Derive != nil {
		switch fd.Derive.Rule {
		case "elapsed_hours":
			if len(fd.Derive.From) != 2 {
				return Field{}, fmt.Errorf("field %q: elapsed_hours needs exactly two source fields", fd.Name)
			}
			f.Derive = ElapsedHours(fd.Derive.From[0], fd.Derive.From[1])
		default:
			return Field{}, fmt.Errorf("field %q: unknown derivation %q", fd.Name, fd.Derive.Rule)
		}
	}

	return f, nil
}

// =============================================================================
// LOADING
// =============================================================================

// LoadFS walks fsys and parses every .yaml/.yml file as a form document.
// payloads attaches a payload builder by form id. Definitions are returned
// in file path order.
func LoadFS(fsys fs.FS, payloads map[string]PayloadBuilder) ([]*Definition, error) {
	var defs []*Definition
	seen := make(map[string]string)

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDocument(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("form: read %s: %w", path, err)
		}

		var doc Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidDefinition, path, err)
		}
		if prev, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: duplicate form %q in %s and %s", ErrInvalidDefinition, doc.ID, prev, path)
		}
		seen[doc.ID] = path

		def, err := doc.Definition(payloads[doc.ID])
		if err != nil {
			return fmt.Errorf("form: %s: %w", path, err)
		}
		defs = append(defs, def)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
