package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/gatewise/traffic-report/internal/models"
)

// ClickHouseTrafficStore implements TrafficStore on ClickHouse. It is
// query-compatible with the PostgreSQL store; deployments with heavy
// traffic volumes mirror the event log into ClickHouse and point this
// service at it via the store backend setting.
type ClickHouseTrafficStore struct {
	conn driver.Conn
}

// NewClickHouseTrafficStore creates a new ClickHouse-backed traffic store.
func NewClickHouseTrafficStore(conn driver.Conn) *ClickHouseTrafficStore {
	return &ClickHouseTrafficStore{conn: conn}
}

// CountActions returns the three filtered counts for the window.
func (s *ClickHouseTrafficStore) CountActions(ctx context.Context, campaignID string, w models.Window) (models.ActionCounts, error) {
	var redirects, safe, total uint64
	err := s.conn.QueryRow(ctx, `
		SELECT countIf(action = 'redirect') AS redirects,
		       countIf(startsWith(action, 'safe_page')) AS safe,
		       count() AS total
		FROM traffic_events
		WHERE campaign_id = ?
		  AND created_at >= ?
		  AND created_at < ?
	`, campaignID, w.Start, w.End).Scan(&redirects, &safe, &total)
	if err != nil {
		return models.ActionCounts{}, fmt.Errorf("failed to count actions: %w", err)
	}
	return models.ActionCounts{
		Redirects: int64(redirects),
		Safe:      int64(safe),
		Total:     int64(total),
	}, nil
}

// BucketedCounts returns the per-bucket series for the window. The
// granularity is validated against the closed set before it is placed
// into the query text; date_trunc units must be constants in ClickHouse.
func (s *ClickHouseTrafficStore) BucketedCounts(ctx context.Context, campaignID string, w models.Window, g models.Granularity) ([]models.BucketPoint, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid bucket granularity %q", g)
	}

	query := fmt.Sprintf(`
		SELECT date_trunc('%s', created_at) AS bucket,
		       countIf(action = 'redirect') AS redirects,
		       countIf(startsWith(action, 'safe_page')) AS safe
		FROM traffic_events
		WHERE campaign_id = ?
		  AND created_at >= ?
		  AND created_at < ?
		GROUP BY bucket
		ORDER BY bucket ASC
	`, string(g))

	rows, err := s.conn.Query(ctx, query, campaignID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query bucketed counts: %w", err)
	}
	defer rows.Close()

	var points []models.BucketPoint
	for rows.Next() {
		var bucket time.Time
		var redirects, safe uint64
		if err := rows.Scan(&bucket, &redirects, &safe); err != nil {
			return nil, fmt.Errorf("failed to scan bucket point: %w", err)
		}
		points = append(points, models.BucketPoint{
			Bucket:    bucket,
			Redirects: int64(redirects),
			Safe:      int64(safe),
		})
	}
	return points, rows.Err()
}

// TopCountries returns up to limit countries ordered by hits.
func (s *ClickHouseTrafficStore) TopCountries(ctx context.Context, campaignID string, w models.Window, limit int) ([]models.CountryStat, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT country,
		       countIf(action = 'redirect') AS redirects,
		       count() AS hits
		FROM traffic_events
		WHERE campaign_id = ?
		  AND created_at >= ?
		  AND created_at < ?
		GROUP BY country
		ORDER BY hits DESC, country ASC
		LIMIT ?
	`, campaignID, w.Start, w.End, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top countries: %w", err)
	}
	defer rows.Close()

	var stats []models.CountryStat
	for rows.Next() {
		var country string
		var redirects, hits uint64
		if err := rows.Scan(&country, &redirects, &hits); err != nil {
			return nil, fmt.Errorf("failed to scan country stat: %w", err)
		}
		stats = append(stats, models.CountryStat{
			Country:   country,
			Redirects: int64(redirects),
			Hits:      int64(hits),
		})
	}
	return stats, rows.Err()
}

// RecentEvents returns up to limit events in the window, newest first.
func (s *ClickHouseTrafficStore) RecentEvents(ctx context.Context, campaignID string, w models.Window, limit int) ([]*models.TrafficEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, campaign_id, domain_id, ip, country, city,
		       device_type, os_name, browser_name, action, referer, user_agent, created_at
		FROM traffic_events
		WHERE campaign_id = ?
		  AND created_at >= ?
		  AND created_at < ?
		ORDER BY id DESC
		LIMIT ?
	`, campaignID, w.Start, w.End, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var events []*models.TrafficEvent
	for rows.Next() {
		var ev models.TrafficEvent
		var id uint64
		err := rows.Scan(&id, &ev.CampaignID, &ev.DomainID, &ev.IP, &ev.Country, &ev.City,
			&ev.DeviceType, &ev.OSName, &ev.BrowserName, &ev.Action, &ev.Referer, &ev.UserAgent, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan traffic event: %w", err)
		}
		ev.ID = int64(id)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// EarliestEventTime returns the first event timestamp for the campaign.
func (s *ClickHouseTrafficStore) EarliestEventTime(ctx context.Context, campaignID string) (time.Time, bool, error) {
	var min time.Time
	var total uint64
	err := s.conn.QueryRow(ctx, `
		SELECT min(created_at), count()
		FROM traffic_events
		WHERE campaign_id = ?
	`, campaignID).Scan(&min, &total)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query earliest event: %w", err)
	}
	if total == 0 {
		return time.Time{}, false, nil
	}
	return min, true, nil
}
