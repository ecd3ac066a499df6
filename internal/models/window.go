package models

import (
	"time"
)

// Granularity is the truncation unit used when bucketing a series.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether g is one of the supported truncation units.
// Granularities reach SQL as a date_trunc argument, so anything outside
// the closed set is rejected before it gets near a query.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return true
	}
	return false
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the window of identical duration ending exactly
// where w begins. It works for any resolved window, including custom
// ranges of arbitrary length.
func (w Window) Previous() Window {
	d := w.Duration()
	return Window{Start: w.Start.Add(-d), End: w.Start}
}

// Contains reports whether t falls inside the half-open range.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ActionCounts are the three filtered counts a traffic store returns
// for a campaign and window.
type ActionCounts struct {
	Redirects int64
	Safe      int64
	Total     int64
}

// BucketPoint is one slot of a time-bucketed series. Buckets with no
// events are not materialized; consumers must not assume contiguity.
type BucketPoint struct {
	Bucket    time.Time `json:"bucket"`
	Redirects int64     `json:"redirects"`
	Safe      int64     `json:"safe"`
}

// CountryStat is a per-country rollup ordered by total hits.
type CountryStat struct {
	Country   string `json:"country"`
	Redirects int64  `json:"redirects"`
	Hits      int64  `json:"hits"`
}
