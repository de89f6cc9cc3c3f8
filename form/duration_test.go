package form_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-hub/form"
)

func tod(t *testing.T, s string) form.TimeOfDay {
	t.Helper()
	v, err := form.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func TestCalculateTotalHours(t *testing.T) {
	cases := []struct {
		start, end string
		want       string
	}{
		{"09:00", "17:30", "8.5"},
		{"18:00", "21:15", "3.25"},
		{"22:00", "02:30", "4.5"}, // crosses midnight
		{"23:59", "00:00", "0.0166666666666667"},
		{"08:00", "08:00", "0"},
	}
	for _, tc := range cases {
		got := form.CalculateTotalHours(tod(t, tc.start), tod(t, tc.end))
		want := decimal.RequireFromString(tc.want)
		assert.True(t, got.Round(16).Equal(want), "%s-%s: got %s", tc.start, tc.end, got)
	}
}

func TestCalculateTotalHours_WrapsAcrossMidnight(t *testing.T) {
	// GIVEN: every start/end pair on a 15-minute grid
	// THEN: the total is ((end - start + 1440) mod 1440) / 60
	for s := 0; s < form.MinutesPerDay; s += 15 {
		for e := 0; e < form.MinutesPerDay; e += 15 {
			start, err := form.NewTimeOfDay(s/60, s%60)
			require.NoError(t, err)
			end, err := form.NewTimeOfDay(e/60, e%60)
			require.NoError(t, err)

			minutes := ((e - s) + form.MinutesPerDay) % form.MinutesPerDay
			want := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
			got := form.CalculateTotalHours(start, end)
			if !got.Equal(want) {
				t.Fatalf("%s-%s: want %s, got %s", start, end, want, got)
			}
		}
	}
}

func TestRoundHours(t *testing.T) {
	h := form.CalculateTotalHours(tod(t, "09:00"), tod(t, "09:20"))
	assert.Equal(t, "0.33", form.RoundHours(h).String())
}

func TestParseTimeOfDay_Rejects(t *testing.T) {
	for _, s := range []string{"", "9", "24:00", "12:60", "noon"} {
		_, err := form.ParseTimeOfDay(s)
		assert.Error(t, err, s)
	}

	_, err := form.NewTimeOfDay(24, 0)
	assert.Error(t, err)
}

func TestElapsedHours_Derivation(t *testing.T) {
	d := form.ElapsedHours("startTime", "endTime")

	_, ok := d.Compute(form.Values{"startTime": "09:00"})
	assert.False(t, ok, "needs both times")

	_, ok = d.Compute(form.Values{"startTime": "09:00", "endTime": "bad"})
	assert.False(t, ok)

	v, ok := d.Compute(form.Values{"startTime": "22:00", "endTime": "02:30"})
	require.True(t, ok)
	assert.True(t, v.(decimal.Decimal).Equal(decimal.NewFromFloat(4.5)))
}
