package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gatewise/traffic-report/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTrafficStore implements TrafficStore using PostgreSQL.
type PostgresTrafficStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTrafficStore creates a new PostgreSQL-backed traffic store.
func NewPostgresTrafficStore(pool *pgxpool.Pool) *PostgresTrafficStore {
	return &PostgresTrafficStore{pool: pool}
}

// CountActions returns the three filtered counts for the window.
func (s *PostgresTrafficStore) CountActions(ctx context.Context, campaignID string, w models.Window) (models.ActionCounts, error) {
	var c models.ActionCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE action = 'redirect') AS redirects,
		       COUNT(*) FILTER (WHERE action LIKE 'safe_page%') AS safe,
		       COUNT(*) AS total
		FROM traffic_events
		WHERE campaign_id = $1
		  AND created_at >= $2
		  AND created_at < $3
	`, campaignID, w.Start, w.End).Scan(&c.Redirects, &c.Safe, &c.Total)
	if err != nil {
		return models.ActionCounts{}, fmt.Errorf("failed to count actions: %w", err)
	}
	return c, nil
}

// BucketedCounts returns the per-bucket series for the window.
func (s *PostgresTrafficStore) BucketedCounts(ctx context.Context, campaignID string, w models.Window, g models.Granularity) ([]models.BucketPoint, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid bucket granularity %q", g)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc($4, created_at) AS bucket,
		       COUNT(*) FILTER (WHERE action = 'redirect') AS redirects,
		       COUNT(*) FILTER (WHERE action LIKE 'safe_page%') AS safe
		FROM traffic_events
		WHERE campaign_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		GROUP BY bucket
		ORDER BY bucket ASC
	`, campaignID, w.Start, w.End, string(g))
	if err != nil {
		return nil, fmt.Errorf("failed to query bucketed counts: %w", err)
	}
	defer rows.Close()

	var points []models.BucketPoint
	for rows.Next() {
		var p models.BucketPoint
		if err := rows.Scan(&p.Bucket, &p.Redirects, &p.Safe); err != nil {
			return nil, fmt.Errorf("failed to scan bucket point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// TopCountries returns up to limit countries ordered by hits.
func (s *PostgresTrafficStore) TopCountries(ctx context.Context, campaignID string, w models.Window, limit int) ([]models.CountryStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country,
		       COUNT(*) FILTER (WHERE action = 'redirect') AS redirects,
		       COUNT(*) AS hits
		FROM traffic_events
		WHERE campaign_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		GROUP BY country
		ORDER BY hits DESC, country ASC
		LIMIT $4
	`, campaignID, w.Start, w.End, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top countries: %w", err)
	}
	defer rows.Close()

	var stats []models.CountryStat
	for rows.Next() {
		var st models.CountryStat
		var country *string
		if err := rows.Scan(&country, &st.Redirects, &st.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan country stat: %w", err)
		}
		if country != nil {
			st.Country = *country
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// RecentEvents returns up to limit events in the window, newest first.
func (s *PostgresTrafficStore) RecentEvents(ctx context.Context, campaignID string, w models.Window, limit int) ([]*models.TrafficEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, campaign_id, domain_id, ip, country, city,
		       device_type, os_name, browser_name, action, referer, user_agent, created_at
		FROM traffic_events
		WHERE campaign_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		ORDER BY id DESC
		LIMIT $4
	`, campaignID, w.Start, w.End, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var events []*models.TrafficEvent
	for rows.Next() {
		var ev models.TrafficEvent
		var domainID, ip, country, city, deviceType, osName, browserName, referer, userAgent *string

		err := rows.Scan(&ev.ID, &ev.CampaignID, &domainID, &ip, &country, &city,
			&deviceType, &osName, &browserName, &ev.Action, &referer, &userAgent, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan traffic event: %w", err)
		}

		ev.DomainID = deref(domainID)
		ev.IP = deref(ip)
		ev.Country = deref(country)
		ev.City = deref(city)
		ev.DeviceType = deref(deviceType)
		ev.OSName = deref(osName)
		ev.BrowserName = deref(browserName)
		ev.Referer = deref(referer)
		ev.UserAgent = deref(userAgent)

		events = append(events, &ev)
	}
	return events, rows.Err()
}

// EarliestEventTime returns the first event timestamp for the campaign.
func (s *PostgresTrafficStore) EarliestEventTime(ctx context.Context, campaignID string) (time.Time, bool, error) {
	var min *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MIN(created_at) FROM traffic_events WHERE campaign_id = $1
	`, campaignID).Scan(&min)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query earliest event: %w", err)
	}
	if min == nil {
		return time.Time{}, false, nil
	}
	return *min, true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
