package storage

import (
	"context"
	"time"

	"github.com/gatewise/traffic-report/internal/models"
)

// CampaignRepo provides read access to campaigns. Campaigns are
// written by the admin service; implementations here never mutate
// them.
type CampaignRepo interface {
	// GetCampaign returns a single campaign by ID or nil if not found.
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	// ListCampaigns returns all campaigns.
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
}

// TrafficStore provides the windowed read queries the report engine
// issues against the traffic event log. All windows are half-open
// [Start, End). Implementations must be safe for concurrent use; the
// engine fans its queries out in parallel.
type TrafficStore interface {
	// CountActions returns redirect, safe_page-family and total counts
	// for a campaign within the window.
	CountActions(ctx context.Context, campaignID string, w models.Window) (models.ActionCounts, error)
	// BucketedCounts returns per-bucket redirect/safe counts, ascending
	// by bucket. Empty buckets are not materialized.
	BucketedCounts(ctx context.Context, campaignID string, w models.Window, g models.Granularity) ([]models.BucketPoint, error)
	// TopCountries returns up to limit countries ordered by total hits
	// descending, ties broken by country code ascending.
	TopCountries(ctx context.Context, campaignID string, w models.Window, limit int) ([]models.CountryStat, error)
	// RecentEvents returns up to limit events within the window, most
	// recent first.
	RecentEvents(ctx context.Context, campaignID string, w models.Window, limit int) ([]*models.TrafficEvent, error)
	// EarliestEventTime returns the timestamp of the campaign's first
	// event; ok is false when the campaign has no events at all.
	EarliestEventTime(ctx context.Context, campaignID string) (t time.Time, ok bool, err error)
}
