package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME OF DAY - Wall-clock time without a date
// =============================================================================

// MinutesPerDay is added when an interval ends before it starts.
const MinutesPerDay = 24 * 60

type TimeOfDay struct {
	Hour   int // 0-23
	Minute int // 0-59
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day out of range: %02d:%02d", hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimeOfDay parses "HH:mm".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) MinutesSinceMidnight() int { return t.Hour*60 + t.Minute }
func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// =============================================================================
// ELAPSED DURATION - Overtime totals
// =============================================================================

// ElapsedMinutes returns the minutes from start to end. An end earlier than
// start is read as the next day, so 22:00 -> 02:30 is 270 minutes. Equal
// times give 0.
func ElapsedMinutes(start, end TimeOfDay) int {
	s, e := start.MinutesSinceMidnight(), end.MinutesSinceMidnight()
	if e < s {
		e += MinutesPerDay
	}
	return e - s
}

// CalculateTotalHours returns the unrounded elapsed hours between two times
// of day. Validation runs against this value; use RoundHours for display.
func CalculateTotalHours(start, end TimeOfDay) decimal.Decimal {
	return decimal.NewFromInt(int64(ElapsedMinutes(start, end))).Div(decimal.NewFromInt(60))
}

// RoundHours rounds to at most two decimal places.
func RoundHours(hours decimal.Decimal) decimal.Decimal {
	return hours.Round(2)
}

// =============================================================================
// DERIVATIONS - Computed field values
// =============================================================================

// Derivation computes a field from other fields. Compute returns false when
// the sources are not usable yet; the derived value is then cleared.
type Derivation struct {
	Name    string
	From    []string
	Compute func(all Values) (any, bool)
}

// ElapsedHours derives total hours from a start and end time field.
func ElapsedHours(startField, endField string) *Derivation {
	return &Derivation{
		Name: "elapsed_hours",
		From: []string{startField, endField},
		Compute: func(all Values) (any, bool) {
			start, ok := all.TimeOfDay(startField)
			if !ok {
				return nil, false
			}
			end, ok := all.TimeOfDay(endField)
			if !ok {
				return nil, false
			}
			return CalculateTotalHours(start, end), true
		},
	}
}
