package report

import (
	"testing"
	"time"

	"github.com/gatewise/traffic-report/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, 15 May 2024, mid-afternoon.
var testNow = time.Date(2024, 5, 15, 13, 45, 12, 0, time.UTC)

func resolve(t *testing.T, preset string, now time.Time) ResolvedWindow {
	t.Helper()
	return Resolve(preset, "", "", now, time.UTC, AllTimeBounds{})
}

func TestResolveToday(t *testing.T) {
	rw := resolve(t, "today", testNow)

	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), rw.Window.End)
	assert.Equal(t, models.GranularityHour, rw.Granularity)
}

func TestResolveThisWeekStartsMonday(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
	}{
		{"monday", time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{"wednesday", testNow},
		{"saturday", time.Date(2024, 5, 18, 23, 59, 59, 0, time.UTC)},
		// Sunday belongs to the end of the running week.
		{"sunday", time.Date(2024, 5, 19, 10, 0, 0, 0, time.UTC)},
	}

	monday := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rw := resolve(t, "this_week", tc.now)

			assert.Equal(t, monday, rw.Window.Start)
			assert.Equal(t, monday.AddDate(0, 0, 7), rw.Window.End)
			assert.Equal(t, time.Monday, rw.Window.Start.Weekday())
			assert.Equal(t, models.GranularityDay, rw.Granularity)
		})
	}
}

func TestResolveThisMonth(t *testing.T) {
	rw := resolve(t, "this_month", testNow)

	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), rw.Window.End)
	assert.Equal(t, models.GranularityWeek, rw.Granularity)
}

func TestResolveThisMonthYearRollover(t *testing.T) {
	december := time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)
	rw := resolve(t, "this_month", december)

	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rw.Window.End)
}

func TestResolveThisYear(t *testing.T) {
	rw := resolve(t, "this_year", testNow)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rw.Window.End)
	assert.Equal(t, models.GranularityMonth, rw.Granularity)
}

func TestResolveAllPrefersEarliestEvent(t *testing.T) {
	bounds := AllTimeBounds{
		EarliestEvent:     time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC),
		HasEvents:         true,
		CampaignCreatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	rw := Resolve("all", "", "", testNow, time.UTC, bounds)

	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), rw.Window.End)
	assert.Equal(t, models.GranularityMonth, rw.Granularity)
}

func TestResolveAllFallsBackToCampaignCreation(t *testing.T) {
	bounds := AllTimeBounds{
		CampaignCreatedAt: time.Date(2024, 3, 2, 17, 5, 0, 0, time.UTC),
	}
	rw := Resolve("all", "", "", testNow, time.UTC, bounds)

	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), rw.Window.Start)
}

func TestResolveAllNoEventsNoCreation(t *testing.T) {
	rw := Resolve("all", "", "", testNow, time.UTC, AllTimeBounds{})

	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), rw.Window.End)
}

func TestResolveCustomSameDayCoversFullDay(t *testing.T) {
	rw := Resolve("custom", "2024-05-01", "2024-05-01", testNow, time.UTC, AllTimeBounds{})

	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), rw.Window.End)
	assert.Equal(t, models.GranularityDay, rw.Granularity)
	assert.Equal(t, "01/05/2024 - 01/05/2024", rw.Label())
}

func TestResolveCustomUnparsableDatesDegrade(t *testing.T) {
	rw := Resolve("custom", "not-a-date", "", testNow, time.UTC, AllTimeBounds{})

	// Start falls back to now, end falls back to the resolved start.
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), rw.Window.End)
}

func TestResolveCustomEndBeforeStartCorrected(t *testing.T) {
	rw := Resolve("custom", "2024-05-10", "2024-05-01", testNow, time.UTC, AllTimeBounds{})

	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), rw.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), rw.Window.End)
}

func TestResolveUnknownPresetBehavesAsToday(t *testing.T) {
	bogus := Resolve("bogus", "", "", testNow, time.UTC, AllTimeBounds{})
	today := resolve(t, "today", testNow)

	assert.Equal(t, today.Window, bogus.Window)
	assert.Equal(t, models.GranularityHour, bogus.Granularity)
	assert.False(t, KnownPreset("bogus"))
	assert.Equal(t, "Custom", PresetLabel("bogus"))
}

func TestResolveEveryPresetSatisfiesEndAfterStart(t *testing.T) {
	presets := []string{"today", "this_week", "this_month", "this_year", "all", "custom", "bogus", ""}
	for _, p := range presets {
		rw := Resolve(p, "", "", testNow, time.UTC, AllTimeBounds{})
		require.True(t, rw.Window.End.After(rw.Window.Start), "preset %q", p)
	}
}

func TestRangeLabelUsesInclusiveEnd(t *testing.T) {
	rw := resolve(t, "this_week", testNow)

	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), rw.RangeStart)
	assert.Equal(t, time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC), rw.RangeEnd)
	assert.Equal(t, "13/05/2024 - 19/05/2024", rw.Label())
}

func TestPreviousWindowKeepsDuration(t *testing.T) {
	cases := []models.Window{
		resolve(t, "today", testNow).Window,
		resolve(t, "this_year", testNow).Window,
		Resolve("custom", "2024-02-01", "2024-04-15", testNow, time.UTC, AllTimeBounds{}).Window,
	}

	for _, w := range cases {
		prev := w.Previous()
		assert.Equal(t, w.Duration(), prev.Duration())
		assert.Equal(t, w.Start, prev.End)
	}
}

func TestResolveHonorsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	// 18:30 UTC on the 14th is already the 15th in UTC+7, so the day
	// boundary shifts.
	now := time.Date(2024, 5, 14, 18, 30, 0, 0, time.UTC)
	rw := Resolve("today", "", "", now, loc, AllTimeBounds{})

	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, loc), rw.Window.Start)
}
