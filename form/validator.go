/*
validator.go - Field validators

PURPOSE:
  Pure functions deciding whether a field value is acceptable. A validator
  sees the field name, its value and every other value (for cross-field
  rules) and returns a Result with a user-facing message on failure.

CONTRACT:
  Validator(field, value, all) -> Result{OK, Message}
  - No side effects, deterministic
  - Non-required validators pass on empty values; emptiness belongs to
    Required so each failure produces exactly one message

BUILT-INS:
  Required     nil, blank string or NaN fails
  Positive     not a number, or <= 0, fails
  MaxDecimals  more fractional digits than allowed fails
  MinLength    trimmed length below the minimum fails
  NotBefore    date earlier than a sibling date field fails
  OneOf        value outside a fixed option list fails
  Accepted     boolean that is not true fails
  OfKind       value that does not parse as the field's Kind fails

SEE ALSO:
  - step.go: Field.Validate composes these
  - schema.go: Rule names in YAML form documents
*/
package form

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the minimum length for free-text reasons.
const DefaultMinLength = 5

// DefaultDecimalPlaces is the precision of money amounts.
const DefaultDecimalPlaces = 2

// Result is the outcome of a single validation.
type Result struct {
	OK      bool
	Message string
}

func Pass() Result { return Result{OK: true} }
func Fail(message string) Result { return Result{OK: false, Message: message} }

// Validator checks one field value.
type Validator func(field string, value any, all Values) Result

// Chain runs validators in order and returns the first failure.
func Chain(validators ...Validator) Validator {
	return func(field string, value any, all Values) Result {
		for _, v := range validators {
			if r := v(field, value, all); !r.OK {
				return r
			}
		}
		return Pass()
	}
}

// WithMessage replaces the failure message of v.
func WithMessage(v Validator, message string) Validator {
	return func(field string, value any, all Values) Result {
		r := v(field, value, all)
		if !r.OK {
			r.Message = message
		}
		return r
	}
}

func Required(label string) Validator {
	return func(_ string, value any, _ Values) Result {
		if IsEmpty(value) {
			return Fail(label + " is required")
		}
		return Pass()
	}
}

func Positive(label string) Validator {
	return func(_ string, value any, _ Values) Result {
		if IsEmpty(value) {
			return Pass()
		}
		d, ok := ToDecimal(value)
		if !ok {
			return Fail(label + " must be a number")
		}
		if !d.IsPositive() {
			return Fail(label + " must be greater than zero")
		}
		return Pass()
	}
}

// MaxDecimals fails numbers with more than places fractional digits, so a
// value is never changed by rounding on its way to the backend.
func MaxDecimals(label string, places int) Validator {
	return func(_ string, value any, _ Values) Result {
		if IsEmpty(value) {
			return Pass()
		}
		d, ok := ToDecimal(value)
		if !ok {
			return Fail(label + " must be a number")
		}
		if !d.Equal(d.Round(int32(places))) {
			return Fail(fmt.Sprintf("%s must have at most %d decimal places", label, places))
		}
		return Pass()
	}
}

func MinLength(label string, min int) Validator {
	return func(_ string, value any, _ Values) Result {
		if IsEmpty(value) {
			return Pass()
		}
		if utf8.RuneCountInString(toString(value)) < min {
			return Fail(fmt.Sprintf("%s must be at least %d characters", label, min))
		}
		return Pass()
	}
}

// NotBefore fails when the value is a date earlier than the date in
// otherField. It passes while either side is missing or unparseable; those
// cases are reported by Required and OfKind.
func NotBefore(label, otherField, otherLabel string) Validator {
	return func(_ string, value any, all Values) Result {
		end, ok := parseDate(value)
		if !ok {
			return Pass()
		}
		start, ok := all.Date(otherField)
		if !ok {
			return Pass()
		}
		if end.Before(start) {
			return Fail(fmt.Sprintf("%s must not be before %s", label, otherLabel))
		}
		return Pass()
	}
}

func OneOf(label string, options []string) Validator {
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	return func(_ string, value any, _ Values) Result {
		if IsEmpty(value) {
			return Pass()
		}
		if !allowed[toString(value)] {
			return Fail(fmt.Sprintf("%s must be one of: %s", label, strings.Join(options, ", ")))
		}
		return Pass()
	}
}

func Accepted(label string) Validator {
	return func(_ string, value any, _ Values) Result {
		if b, ok := toBool(value); ok && b {
			return Pass()
		}
		return Fail(label + " must be accepted")
	}
}

// OfKind checks that a non-empty value parses as kind.
func OfKind(kind Kind, label string) Validator {
	return func(_ string, value any, _ Values) Result {
		if IsEmpty(value) {
			return Pass()
		}
		switch kind {
		case KindString:
			switch value.(type) {
			case string, json.Number:
			default:
				return Fail(label + " must be text")
			}
		case KindNumber:
			if _, ok := ToDecimal(value); !ok {
				return Fail(label + " must be a number")
			}
		case KindBool:
			if _, ok := toBool(value); !ok {
				return Fail(label + " must be true or false")
			}
		case KindDate:
			if _, ok := parseDate(value); !ok {
				return Fail(label + " must be a valid date (YYYY-MM-DD)")
			}
		case KindTime:
			s, ok := value.(string)
			if !ok {
				return Fail(label + " must be a valid time (HH:mm)")
			}
			if _, err := ParseTimeOfDay(s); err != nil {
				return Fail(label + " must be a valid time (HH:mm)")
			}
		}
		return Pass()
	}
}
