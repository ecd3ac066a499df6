package report

import (
	"time"

	"github.com/gatewise/traffic-report/internal/models"
)

// Preset is a named shorthand for a reporting window.
type Preset string

const (
	PresetToday     Preset = "today"
	PresetThisWeek  Preset = "this_week"
	PresetThisMonth Preset = "this_month"
	PresetThisYear  Preset = "this_year"
	PresetAll       Preset = "all"
	PresetCustom    Preset = "custom"
)

// presetGranularity maps each preset to its default bucket size.
// Initialized once; never mutated at runtime.
var presetGranularity = map[Preset]models.Granularity{
	PresetToday:     models.GranularityHour,
	PresetThisWeek:  models.GranularityDay,
	PresetThisMonth: models.GranularityWeek,
	PresetThisYear:  models.GranularityMonth,
	PresetAll:       models.GranularityMonth,
	PresetCustom:    models.GranularityDay,
}

// presetLabels maps each preset to its display label. Callers localize
// the text; the fallback for unrecognized tokens is the custom label.
var presetLabels = map[Preset]string{
	PresetToday:     "Today",
	PresetThisWeek:  "This week",
	PresetThisMonth: "This month",
	PresetThisYear:  "This year",
	PresetAll:       "All time",
	PresetCustom:    "Custom",
}

// KnownPreset reports whether the token names one of the supported
// presets.
func KnownPreset(preset string) bool {
	_, ok := presetGranularity[Preset(preset)]
	return ok
}

// PresetLabel returns the display label for a preset token, falling
// back to the custom label for unrecognized tokens.
func PresetLabel(preset string) string {
	if label, ok := presetLabels[Preset(preset)]; ok {
		return label
	}
	return presetLabels[PresetCustom]
}

// AllTimeBounds carries the inputs the "all" preset needs for its
// lower bound: the campaign's earliest event, if any, and the
// campaign's creation time as a fallback.
type AllTimeBounds struct {
	EarliestEvent     time.Time
	HasEvents         bool
	CampaignCreatedAt time.Time
}

// ResolvedWindow is the outcome of resolving a preset at an instant.
type ResolvedWindow struct {
	Window      models.Window
	Granularity models.Granularity

	// RangeStart and RangeEnd are the inclusive display dates: the
	// window start and the day immediately before the exclusive end.
	RangeStart time.Time
	RangeEnd   time.Time
}

// Label renders the inclusive date range in day/month/year order.
func (r ResolvedWindow) Label() string {
	return r.RangeStart.Format("02/01/2006") + " - " + r.RangeEnd.Format("02/01/2006")
}

// dateLayouts accepted for custom range bounds.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Resolve turns a preset token, optional custom bounds and the current
// instant into a concrete half-open window and bucket granularity. All
// boundaries are computed in loc. Unknown tokens behave as "today";
// malformed custom dates degrade to their fallbacks rather than
// failing. The resolved window always satisfies End > Start.
func Resolve(preset, startDate, endDate string, now time.Time, loc *time.Location, all AllTimeBounds) ResolvedWindow {
	granularity, known := presetGranularity[Preset(preset)]
	if !known {
		granularity = models.GranularityHour
	}

	var start, end time.Time

	switch Preset(preset) {
	case PresetThisWeek:
		today := startOfDay(now, loc)
		// Weeks start Monday; Sunday belongs to the end of the week,
		// not the start of the next one.
		dow := int(today.Weekday())
		diff := 1 - dow
		if dow == 0 {
			diff = -6
		}
		start = today.AddDate(0, 0, diff)
		end = start.AddDate(0, 0, 7)

	case PresetThisMonth:
		n := now.In(loc)
		start = time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)

	case PresetThisYear:
		n := now.In(loc)
		start = time.Date(n.Year(), 1, 1, 0, 0, 0, 0, loc)
		end = time.Date(n.Year()+1, 1, 1, 0, 0, 0, 0, loc)

	case PresetAll:
		lower := all.EarliestEvent
		if !all.HasEvents {
			lower = all.CampaignCreatedAt
		}
		if lower.IsZero() {
			lower = startOfDay(now, loc)
		}
		start = startOfDay(lower, loc)
		end = startOfDay(now, loc).AddDate(0, 0, 1)

	case PresetCustom:
		s, ok := parseDate(startDate, loc)
		if !ok {
			s = now
		}
		e, ok := parseDate(endDate, loc)
		if !ok {
			e = s
		}
		start = startOfDay(s, loc)
		// End is exclusive, so a same-day range covers that full day.
		end = startOfDay(e, loc).AddDate(0, 0, 1)

	default:
		// today and anything unrecognized
		start = startOfDay(now, loc)
		end = start.AddDate(0, 0, 1)
	}

	if !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}

	return ResolvedWindow{
		Window:      models.Window{Start: start, End: end},
		Granularity: granularity,
		RangeStart:  start,
		RangeEnd:    end.AddDate(0, 0, -1),
	}
}
