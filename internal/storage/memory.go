package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatewise/traffic-report/internal/models"
)

// InMemoryCampaignRepo is a simple in-memory implementation of
// CampaignRepo. It is used when no database is configured and as a
// test fixture.
type InMemoryCampaignRepo struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

// NewInMemoryCampaignRepo creates a new empty in-memory campaign repo.
func NewInMemoryCampaignRepo() *InMemoryCampaignRepo {
	return &InMemoryCampaignRepo{
		campaigns: make(map[string]*models.Campaign),
	}
}

// GetCampaign returns the campaign with the given ID or nil if not found.
func (r *InMemoryCampaignRepo) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// ListCampaigns returns a slice containing all campaigns.
func (r *InMemoryCampaignRepo) ListCampaigns(_ context.Context) ([]*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*models.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		cp := *c
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// PutCampaign stores a campaign. Only the in-memory repo is writable;
// the database repos are read-only by design of the service.
func (r *InMemoryCampaignRepo) PutCampaign(c *models.Campaign) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
}

// InMemoryTrafficStore stores traffic events in memory. It mirrors the
// query semantics of the SQL stores, bucket truncation included, so the
// report engine behaves identically against it.
type InMemoryTrafficStore struct {
	mu     sync.RWMutex
	loc    *time.Location
	nextID int64
	events map[string][]*models.TrafficEvent
}

// NewInMemoryTrafficStore constructs a new empty traffic store. Bucket
// truncation happens in loc, the same reference timezone the report
// engine resolves windows in.
func NewInMemoryTrafficStore(loc *time.Location) *InMemoryTrafficStore {
	if loc == nil {
		loc = time.UTC
	}
	return &InMemoryTrafficStore{
		loc:    loc,
		events: make(map[string][]*models.TrafficEvent),
	}
}

// AddEvent appends an event to the store, assigning it the next ID if
// it has none.
func (s *InMemoryTrafficStore) AddEvent(ev *models.TrafficEvent) {
	if ev == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	if cp.ID == 0 {
		s.nextID++
		cp.ID = s.nextID
	} else if cp.ID > s.nextID {
		s.nextID = cp.ID
	}
	s.events[cp.CampaignID] = append(s.events[cp.CampaignID], &cp)
}

// CountActions returns the three filtered counts for the window.
func (s *InMemoryTrafficStore) CountActions(_ context.Context, campaignID string, w models.Window) (models.ActionCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c models.ActionCounts
	for _, ev := range s.events[campaignID] {
		if !w.Contains(ev.CreatedAt) {
			continue
		}
		c.Total++
		switch {
		case ev.Action == models.ActionRedirect:
			c.Redirects++
		case models.IsSafeAction(ev.Action):
			c.Safe++
		}
	}
	return c, nil
}

// BucketedCounts returns the per-bucket series for the window.
func (s *InMemoryTrafficStore) BucketedCounts(_ context.Context, campaignID string, w models.Window, g models.Granularity) ([]models.BucketPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[time.Time]*models.BucketPoint)
	for _, ev := range s.events[campaignID] {
		if !w.Contains(ev.CreatedAt) {
			continue
		}
		b := TruncateBucket(ev.CreatedAt, g, s.loc)
		p, ok := buckets[b]
		if !ok {
			p = &models.BucketPoint{Bucket: b}
			buckets[b] = p
		}
		switch {
		case ev.Action == models.ActionRedirect:
			p.Redirects++
		case models.IsSafeAction(ev.Action):
			p.Safe++
		}
	}

	points := make([]models.BucketPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket.Before(points[j].Bucket) })
	return points, nil
}

// TopCountries returns up to limit countries ordered by hits.
func (s *InMemoryTrafficStore) TopCountries(_ context.Context, campaignID string, w models.Window, limit int) ([]models.CountryStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCountry := make(map[string]*models.CountryStat)
	for _, ev := range s.events[campaignID] {
		if !w.Contains(ev.CreatedAt) {
			continue
		}
		st, ok := byCountry[ev.Country]
		if !ok {
			st = &models.CountryStat{Country: ev.Country}
			byCountry[ev.Country] = st
		}
		st.Hits++
		if ev.Action == models.ActionRedirect {
			st.Redirects++
		}
	}

	stats := make([]models.CountryStat, 0, len(byCountry))
	for _, st := range byCountry {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Hits != stats[j].Hits {
			return stats[i].Hits > stats[j].Hits
		}
		return stats[i].Country < stats[j].Country
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// RecentEvents returns up to limit events in the window, newest first.
func (s *InMemoryTrafficStore) RecentEvents(_ context.Context, campaignID string, w models.Window, limit int) ([]*models.TrafficEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*models.TrafficEvent
	for _, ev := range s.events[campaignID] {
		if !w.Contains(ev.CreatedAt) {
			continue
		}
		cp := *ev
		events = append(events, &cp)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// EarliestEventTime returns the first event timestamp for the campaign.
func (s *InMemoryTrafficStore) EarliestEventTime(_ context.Context, campaignID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var min time.Time
	found := false
	for _, ev := range s.events[campaignID] {
		if !found || ev.CreatedAt.Before(min) {
			min = ev.CreatedAt
			found = true
		}
	}
	return min, found, nil
}

// TruncateBucket truncates t to the start of its bucket in loc. The
// semantics match SQL date_trunc: weeks start on Monday, months on the
// first.
func TruncateBucket(t time.Time, g models.Granularity, loc *time.Location) time.Time {
	t = t.In(loc)
	switch g {
	case models.GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	case models.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}
