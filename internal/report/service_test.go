package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewise/traffic-report/internal/models"
	"github.com/gatewise/traffic-report/internal/storage"
)

// seedService builds a service over in-memory repos with a fixed
// traffic history around testNow (Wednesday, 2024-05-15 UTC):
//
//	campaign C1, created 2024-05-01
//	  current week (May 13 - 20): 80 redirects on May 13 rotating
//	  US/VN/DE, 20 safe-page hits from FR on May 14
//	  previous week (May 6 - 13): 40 redirects, 10 safe
//	  one stray redirect on Apr 20, before campaign creation
//	campaign C2, created 2024-05-01, no events at all
func seedService(t *testing.T) (*Service, *storage.InMemoryTrafficStore) {
	t.Helper()

	campaigns := storage.NewInMemoryCampaignRepo()
	campaigns.PutCampaign(&models.Campaign{
		ID:        "C1",
		DomainID:  "D1",
		Name:      "Spring push",
		TargetURL: "https://offer.example.com/",
		Active:    true,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	campaigns.PutCampaign(&models.Campaign{
		ID:        "C2",
		DomainID:  "D1",
		Name:      "Idle",
		Active:    true,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})

	store := storage.NewInMemoryTrafficStore(time.UTC)
	countries := []string{"US", "VN", "DE"}
	for i := 0; i < 80; i++ {
		store.AddEvent(&models.TrafficEvent{
			CampaignID: "C1",
			Country:    countries[i%3],
			Action:     models.ActionRedirect,
			CreatedAt:  time.Date(2024, 5, 13, 10, 0, i, 0, time.UTC),
		})
	}
	for i := 0; i < 20; i++ {
		store.AddEvent(&models.TrafficEvent{
			CampaignID: "C1",
			Country:    "FR",
			Action:     models.ActionSafePage,
			Referer:    "ref=https://www.google.com/ | url=https://lp.example.com/ | detail=geo:FR",
			CreatedAt:  time.Date(2024, 5, 14, 11, 0, i, 0, time.UTC),
		})
	}
	for i := 0; i < 40; i++ {
		store.AddEvent(&models.TrafficEvent{
			CampaignID: "C1",
			Country:    "US",
			Action:     models.ActionRedirect,
			CreatedAt:  time.Date(2024, 5, 7, 10, 0, i, 0, time.UTC),
		})
	}
	for i := 0; i < 10; i++ {
		store.AddEvent(&models.TrafficEvent{
			CampaignID: "C1",
			Country:    "US",
			Action:     models.ActionSafePage,
			CreatedAt:  time.Date(2024, 5, 8, 11, 0, i, 0, time.UTC),
		})
	}
	store.AddEvent(&models.TrafficEvent{
		CampaignID: "C1",
		Country:    "US",
		Action:     models.ActionRedirect,
		CreatedAt:  time.Date(2024, 4, 20, 8, 0, 0, 0, time.UTC),
	})

	return NewService(campaigns, store, time.UTC, nil), store
}

func TestBuildReportThisWeek(t *testing.T) {
	svc, _ := seedService(t)

	rep, err := svc.BuildReport(context.Background(), "C1", Request{Preset: "this_week", Now: testNow})
	require.NoError(t, err)
	require.NotNil(t, rep.Campaign)

	assert.Equal(t, "C1", rep.Campaign.ID)
	assert.Equal(t, "this_week", rep.Preset)
	assert.Equal(t, "This week", rep.PresetLabel)
	assert.Equal(t, models.GranularityDay, rep.Granularity)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), rep.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), rep.Window.End)
	assert.Equal(t, "13/05/2024 - 19/05/2024", rep.RangeLabel)

	assert.Equal(t, Summary{Redirects: 80, Safe: 20, Fail: 20, Total: 100, PassRate: 80.0}, rep.Summary)
	assert.Equal(t, Summary{Redirects: 40, Safe: 10, Fail: 10, Total: 50, PassRate: 80.0}, rep.Previous)

	assert.Equal(t, int64(40), rep.Delta.Redirects)
	assert.Equal(t, int64(10), rep.Delta.Safe)
	assert.Equal(t, 0.0, rep.Delta.PassRate)

	require.NotNil(t, rep.Growth.Redirects)
	require.NotNil(t, rep.Growth.Safe)
	require.NotNil(t, rep.Growth.PassRate)
	assert.Equal(t, 100.0, *rep.Growth.Redirects)
	assert.Equal(t, 100.0, *rep.Growth.Safe)
	assert.Equal(t, 0.0, *rep.Growth.PassRate)
}

func TestBuildReportSeriesAndCountries(t *testing.T) {
	svc, _ := seedService(t)

	rep, err := svc.BuildReport(context.Background(), "C1", Request{Preset: "this_week", Now: testNow})
	require.NoError(t, err)

	require.Len(t, rep.Series, 2)
	assert.Equal(t, models.BucketPoint{
		Bucket:    time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		Redirects: 80,
	}, rep.Series[0])
	assert.Equal(t, models.BucketPoint{
		Bucket: time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC),
		Safe:   20,
	}, rep.Series[1])

	// US and VN tie at 27 hits; the tie breaks alphabetically.
	require.Len(t, rep.Countries, 4)
	assert.Equal(t, models.CountryStat{Country: "US", Hits: 27, Redirects: 27}, rep.Countries[0])
	assert.Equal(t, models.CountryStat{Country: "VN", Hits: 27, Redirects: 27}, rep.Countries[1])
	assert.Equal(t, models.CountryStat{Country: "DE", Hits: 26, Redirects: 26}, rep.Countries[2])
	assert.Equal(t, models.CountryStat{Country: "FR", Hits: 20, Redirects: 0}, rep.Countries[3])
}

func TestBuildReportRecentEvents(t *testing.T) {
	svc, _ := seedService(t)

	rep, err := svc.BuildReport(context.Background(), "C1", Request{Preset: "this_week", Now: testNow})
	require.NoError(t, err)

	// 100 events fall in the window; only the newest 50 come back.
	require.Len(t, rep.Events, RecentEventLimit)
	for i := 1; i < len(rep.Events); i++ {
		assert.Greater(t, rep.Events[i-1].ID, rep.Events[i].ID)
	}

	// The newest events are the packed-referer safe hits from May 14.
	first := rep.Events[0]
	assert.Equal(t, models.ActionSafePage, first.Action)
	require.NotNil(t, first.Meta)
	assert.Equal(t, "https://www.google.com/", first.Meta.Referrer)
	assert.Equal(t, "https://lp.example.com/", first.Meta.RequestURL)
	assert.Equal(t, "geo:FR", first.Meta.Detail)
}

func TestBuildReportAllPresetUsesEarliestEvent(t *testing.T) {
	svc, _ := seedService(t)

	// The stray April 20 event predates campaign creation and wins as
	// the window's lower bound.
	rep, err := svc.BuildReport(context.Background(), "C1", Request{Preset: "all", Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), rep.Window.Start)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), rep.Window.End)
	assert.Equal(t, int64(151), rep.Summary.Total)
	assert.Equal(t, models.GranularityMonth, rep.Granularity)
}

func TestBuildReportAllPresetFallsBackToCreation(t *testing.T) {
	svc, _ := seedService(t)

	rep, err := svc.BuildReport(context.Background(), "C2", Request{Preset: "all", Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), rep.Window.Start)
	assert.Equal(t, Summary{}, rep.Summary)
}

func TestBuildReportNoPreviousTraffic(t *testing.T) {
	svc, store := seedService(t)

	store.AddEvent(&models.TrafficEvent{
		CampaignID: "C2",
		Country:    "US",
		Action:     models.ActionRedirect,
		CreatedAt:  time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC),
	})

	rep, err := svc.BuildReport(context.Background(), "C2", Request{Preset: "today", Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, int64(1), rep.Summary.Redirects)
	assert.Equal(t, int64(0), rep.Previous.Total)
	assert.Nil(t, rep.Growth.Redirects)
	assert.Nil(t, rep.Growth.Safe)
	assert.Nil(t, rep.Growth.PassRate)
}

func TestBuildReportIdempotent(t *testing.T) {
	svc, _ := seedService(t)
	req := Request{Preset: "this_week", Now: testNow}

	first, err := svc.BuildReport(context.Background(), "C1", req)
	require.NoError(t, err)
	second, err := svc.BuildReport(context.Background(), "C1", req)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestBuildReportCampaignNotFound(t *testing.T) {
	svc, _ := seedService(t)

	rep, err := svc.BuildReport(context.Background(), "nope", Request{Preset: "today", Now: testNow})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestBuildReportStoreFailure(t *testing.T) {
	campaigns := storage.NewInMemoryCampaignRepo()
	campaigns.PutCampaign(&models.Campaign{
		ID:        "C1",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	svc := NewService(campaigns, failingStore{}, time.UTC, nil)

	rep, err := svc.BuildReport(context.Background(), "C1", Request{Preset: "today", Now: testNow})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestServiceRecentEvents(t *testing.T) {
	svc, _ := seedService(t)

	events, err := svc.RecentEvents(context.Background(), "C1", Request{Preset: "this_week", Now: testNow})
	require.NoError(t, err)
	require.Len(t, events, RecentEventLimit)
	require.NotNil(t, events[0].Meta)

	_, err = svc.RecentEvents(context.Background(), "nope", Request{Preset: "today", Now: testNow})
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

var errStoreDown = errors.New("store down")

// failingStore fails every query; it exercises the all-or-nothing
// error path of BuildReport.
type failingStore struct{}

func (failingStore) CountActions(context.Context, string, models.Window) (models.ActionCounts, error) {
	return models.ActionCounts{}, errStoreDown
}

func (failingStore) BucketedCounts(context.Context, string, models.Window, models.Granularity) ([]models.BucketPoint, error) {
	return nil, errStoreDown
}

func (failingStore) TopCountries(context.Context, string, models.Window, int) ([]models.CountryStat, error) {
	return nil, errStoreDown
}

func (failingStore) RecentEvents(context.Context, string, models.Window, int) ([]*models.TrafficEvent, error) {
	return nil, errStoreDown
}

func (failingStore) EarliestEventTime(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, fmt.Errorf("earliest: %w", errStoreDown)
}
