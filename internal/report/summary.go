package report

import (
	"math"

	"github.com/gatewise/traffic-report/internal/models"
)

// Summary holds the windowed totals for a campaign. Fail mirrors Safe:
// every safe_page outcome is a filtered (failed) visit. PassRate is the
// redirect share of total traffic as a percentage rounded to 0.1.
type Summary struct {
	Redirects int64   `json:"redirects"`
	Safe      int64   `json:"safe"`
	Fail      int64   `json:"fail"`
	Total     int64   `json:"total"`
	PassRate  float64 `json:"pass_rate"`
}

// NewSummary builds a Summary from raw store counts. Counts are
// clamped to non-negative in case the store hands back nulls or
// garbage.
func NewSummary(c models.ActionCounts) Summary {
	s := Summary{
		Redirects: clampCount(c.Redirects),
		Safe:      clampCount(c.Safe),
		Total:     clampCount(c.Total),
	}
	s.Fail = s.Safe
	if s.Total > 0 {
		s.PassRate = math.Round(float64(s.Redirects)/float64(s.Total)*1000) / 10
	}
	return s
}

// Delta is the plain current-minus-previous difference per metric.
// PassRate is in percentage points.
type Delta struct {
	Redirects int64   `json:"redirects"`
	Safe      int64   `json:"safe"`
	PassRate  float64 `json:"pass_rate"`
}

// Growth is the period-over-period change. Redirects and Safe are
// percentages relative to the previous period and are nil when the
// previous value is zero (no baseline to grow from). PassRate is a
// points-change, nil only when the previous pass rate itself could not
// be computed because the previous total was zero.
type Growth struct {
	Redirects *float64 `json:"redirects"`
	Safe      *float64 `json:"safe"`
	PassRate  *float64 `json:"pass_rate"`
}

// Compare derives the Delta and Growth between two summaries.
func Compare(current, previous Summary) (Delta, Growth) {
	d := Delta{
		Redirects: current.Redirects - previous.Redirects,
		Safe:      current.Safe - previous.Safe,
		PassRate:  current.PassRate - previous.PassRate,
	}

	var g Growth
	if previous.Redirects > 0 {
		v := math.Round(float64(d.Redirects)/float64(previous.Redirects)*1000) / 10
		g.Redirects = &v
	}
	if previous.Safe > 0 {
		v := math.Round(float64(d.Safe)/float64(previous.Safe)*1000) / 10
		g.Safe = &v
	}
	if previous.Total > 0 {
		v := math.Round(d.PassRate*10) / 10
		g.PassRate = &v
	}
	return d, g
}

func clampCount(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
