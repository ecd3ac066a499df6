package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatewise/traffic-report/internal/models"
	"github.com/gatewise/traffic-report/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result limits. These are part of the report contract, not tunables.
const (
	TopCountryLimit  = 10
	RecentEventLimit = 50
)

// ErrCampaignNotFound is returned when the campaign ID does not
// resolve. No windowed queries are issued in that case.
var ErrCampaignNotFound = errors.New("campaign not found")

// Service assembles campaign traffic reports. Every report is computed
// from scratch against the store; nothing is cached across requests.
type Service struct {
	campaigns storage.CampaignRepo
	store     storage.TrafficStore
	loc       *time.Location
	logger    *zap.Logger
}

// NewService creates a new report service. All window boundaries are
// computed in loc.
func NewService(campaigns storage.CampaignRepo, store storage.TrafficStore, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		campaigns: campaigns,
		store:     store,
		loc:       loc,
		logger:    logger,
	}
}

// Request carries the caller's reporting window selection. StartDate
// and EndDate only apply to the custom preset. A zero Now means the
// current time.
type Request struct {
	Preset    string
	StartDate string
	EndDate   string
	Now       time.Time
}

func (r Request) now() time.Time {
	if r.Now.IsZero() {
		return time.Now()
	}
	return r.Now
}

// Report is the assembled analytics snapshot for one campaign and
// window.
type Report struct {
	Campaign    *models.Campaign    `json:"campaign"`
	Preset      string              `json:"preset"`
	PresetLabel string              `json:"preset_label"`
	Granularity models.Granularity  `json:"granularity"`
	Window      models.Window       `json:"window"`
	RangeStart  time.Time           `json:"range_start"`
	RangeEnd    time.Time           `json:"range_end"`
	RangeLabel  string              `json:"range_label"`

	Summary  Summary `json:"summary"`
	Previous Summary `json:"previous"`
	Delta    Delta   `json:"delta"`
	Growth   Growth  `json:"growth"`

	Series    []models.BucketPoint `json:"series"`
	Countries []models.CountryStat `json:"countries"`
	Events    []*models.TrafficEvent `json:"events"`
}

// BuildReport computes the full report for a campaign. The campaign is
// looked up first; a miss short-circuits with ErrCampaignNotFound
// before any windowed query runs. The five windowed queries are
// independent once both windows are resolved and run concurrently; any
// store failure aborts the whole build. Partial reports are never
// returned.
func (s *Service) BuildReport(ctx context.Context, campaignID string, req Request) (*Report, error) {
	campaign, resolved, err := s.resolve(ctx, campaignID, req)
	if err != nil {
		return nil, err
	}

	window := resolved.Window
	previous := window.Previous()

	var (
		curCounts  models.ActionCounts
		prevCounts models.ActionCounts
		series     []models.BucketPoint
		countries  []models.CountryStat
		events     []*models.TrafficEvent
	)

	eg, qctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		curCounts, err = s.store.CountActions(qctx, campaignID, window)
		return err
	})
	eg.Go(func() error {
		var err error
		prevCounts, err = s.store.CountActions(qctx, campaignID, previous)
		return err
	})
	eg.Go(func() error {
		var err error
		series, err = s.store.BucketedCounts(qctx, campaignID, window, resolved.Granularity)
		return err
	})
	eg.Go(func() error {
		var err error
		countries, err = s.store.TopCountries(qctx, campaignID, window, TopCountryLimit)
		return err
	})
	eg.Go(func() error {
		var err error
		events, err = s.store.RecentEvents(qctx, campaignID, window, RecentEventLimit)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build report for campaign %s: %w", campaignID, err)
	}

	summary := NewSummary(curCounts)
	prevSummary := NewSummary(prevCounts)
	delta, growth := Compare(summary, prevSummary)

	for _, ev := range events {
		ev.Meta = ParseEventMeta(ev.Referer)
	}

	s.logger.Debug("report built",
		zap.String("campaign_id", campaignID),
		zap.String("preset", req.Preset),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int64("total", summary.Total),
	)

	return &Report{
		Campaign:    campaign,
		Preset:      req.Preset,
		PresetLabel: PresetLabel(req.Preset),
		Granularity: resolved.Granularity,
		Window:      window,
		RangeStart:  resolved.RangeStart,
		RangeEnd:    resolved.RangeEnd,
		RangeLabel:  resolved.Label(),
		Summary:     summary,
		Previous:    prevSummary,
		Delta:       delta,
		Growth:      growth,
		Series:      series,
		Countries:   countries,
		Events:      events,
	}, nil
}

// RecentEvents resolves the requested window and returns only the
// metadata-parsed recent events for it.
func (s *Service) RecentEvents(ctx context.Context, campaignID string, req Request) ([]*models.TrafficEvent, error) {
	_, resolved, err := s.resolve(ctx, campaignID, req)
	if err != nil {
		return nil, err
	}

	events, err := s.store.RecentEvents(ctx, campaignID, resolved.Window, RecentEventLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent events for campaign %s: %w", campaignID, err)
	}
	for _, ev := range events {
		ev.Meta = ParseEventMeta(ev.Referer)
	}
	return events, nil
}

// resolve looks up the campaign and resolves the report window. The
// earliest-event query only runs for the "all" preset.
func (s *Service) resolve(ctx context.Context, campaignID string, req Request) (*models.Campaign, ResolvedWindow, error) {
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, ResolvedWindow{}, fmt.Errorf("failed to look up campaign %s: %w", campaignID, err)
	}
	if campaign == nil {
		return nil, ResolvedWindow{}, ErrCampaignNotFound
	}

	bounds := AllTimeBounds{CampaignCreatedAt: campaign.CreatedAt}
	if Preset(req.Preset) == PresetAll {
		earliest, ok, err := s.store.EarliestEventTime(ctx, campaignID)
		if err != nil {
			return nil, ResolvedWindow{}, fmt.Errorf("failed to find earliest event for campaign %s: %w", campaignID, err)
		}
		bounds.EarliestEvent = earliest
		bounds.HasEvents = ok
	}

	return campaign, Resolve(req.Preset, req.StartDate, req.EndDate, req.now(), s.loc, bounds), nil
}
