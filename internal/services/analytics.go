package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// Default analytics windows, in days.
const (
	DefaultShopAnalyticsDays   = 30
	DefaultActivitySummaryDays = 7
	DefaultSearchAnalyticsDays = 30
)

type ShopDashboard struct {
	models.ShopTotals
	RatingStats   []models.RatingCount `json:"rating_stats"`
	RecentShops   []*models.Shop       `json:"recent_mechanics"`
	MonthlyGrowth []models.MonthCount  `json:"monthly_growth"`
}

type ShopAnalytics struct {
	Days          int               `json:"days"`
	DailyActivity []models.DayCount `json:"daily_activity"`
	DailySearches []models.DayCount `json:"search_queries"`
	TopLocations  []models.KeyCount `json:"top_locations"`
}

type ActivitySummary struct {
	Days           int                `json:"days"`
	ByAction       []models.KeyCount  `json:"action_stats"`
	TopUsers       []models.KeyCount  `json:"user_activity"`
	HourlyActivity []models.HourCount `json:"hourly_activity"`
}

type SearchAnalytics struct {
	Days               int                  `json:"days"`
	DailySearches      []models.DayCount    `json:"daily_searches"`
	PopularLocations   []models.KeyCount    `json:"popular_locations"`
	RadiusDistribution []models.RadiusCount `json:"radius_distribution"`
	QueryTypes         []models.KeyCount    `json:"query_type_distribution"`
}

type MapView struct {
	Shops            []*models.Shop `json:"mechanics"`
	GoogleMapsAPIKey string         `json:"google_maps_api_key"`
}

// AnalyticsService answers the read-only staff reports.
type AnalyticsService struct {
	store      storage.Store
	mapsAPIKey string
	now        func() time.Time
}

func NewAnalyticsService(store storage.Store, mapsAPIKey string) *AnalyticsService {
	return &AnalyticsService{store: store, mapsAPIKey: mapsAPIKey, now: time.Now}
}

func (s *AnalyticsService) window(days int) (time.Time, time.Time) {
	end := s.now()
	return end.AddDate(0, 0, -days), end
}

func (s *AnalyticsService) Dashboard(ctx context.Context) (*ShopDashboard, error) {
	totals, err := s.store.GetShopTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("shop totals: %w", err)
	}
	ratings, err := s.store.CountShopsByRating(ctx)
	if err != nil {
		return nil, fmt.Errorf("rating distribution: %w", err)
	}
	recent, err := s.store.FindShops(ctx, storage.ShopFilter{Order: storage.OrderNewest, Limit: 5})
	if err != nil {
		return nil, fmt.Errorf("recent shops: %w", err)
	}
	growth, err := s.store.CountShopsByMonth(ctx)
	if err != nil {
		return nil, fmt.Errorf("monthly growth: %w", err)
	}

	return &ShopDashboard{
		ShopTotals:    totals,
		RatingStats:   ratings,
		RecentShops:   recent,
		MonthlyGrowth: growth,
	}, nil
}

func (s *AnalyticsService) MapView(ctx context.Context) (*MapView, error) {
	shops, err := s.store.FindShops(ctx, storage.ShopFilter{ActiveOnly: true, Order: storage.OrderName})
	if err != nil {
		return nil, fmt.Errorf("active shops: %w", err)
	}
	return &MapView{Shops: shops, GoogleMapsAPIKey: s.mapsAPIKey}, nil
}

func (s *AnalyticsService) ShopAnalytics(ctx context.Context, days int) (*ShopAnalytics, error) {
	since, until := s.window(days)

	activity, err := s.store.CountActivityByDay(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("daily activity: %w", err)
	}
	searches, err := s.store.CountSearchesByDay(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("daily searches: %w", err)
	}
	locations, err := s.store.TopSearchLocations(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("top locations: %w", err)
	}

	return &ShopAnalytics{
		Days:          days,
		DailyActivity: activity,
		DailySearches: searches,
		TopLocations:  locations,
	}, nil
}

func (s *AnalyticsService) ActivitySummary(ctx context.Context, days int) (*ActivitySummary, error) {
	since, until := s.window(days)

	byAction, err := s.store.CountActivityByAction(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("activity by action: %w", err)
	}
	byUser, err := s.store.CountActivityByUser(ctx, since, until, 10)
	if err != nil {
		return nil, fmt.Errorf("activity by user: %w", err)
	}
	byHour, err := s.store.CountActivityByHour(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("activity by hour: %w", err)
	}

	return &ActivitySummary{
		Days:           days,
		ByAction:       byAction,
		TopUsers:       byUser,
		HourlyActivity: byHour,
	}, nil
}

func (s *AnalyticsService) SearchAnalytics(ctx context.Context, days int) (*SearchAnalytics, error) {
	since, until := s.window(days)

	daily, err := s.store.CountSearchesByDay(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("daily searches: %w", err)
	}
	locations, err := s.store.TopSearchLocations(ctx, 15)
	if err != nil {
		return nil, fmt.Errorf("popular locations: %w", err)
	}
	radius, err := s.store.CountSearchesByRadius(ctx)
	if err != nil {
		return nil, fmt.Errorf("radius distribution: %w", err)
	}
	types, err := s.store.CountSearchesByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}

	return &SearchAnalytics{
		Days:               days,
		DailySearches:      daily,
		PopularLocations:   locations,
		RadiusDistribution: radius,
		QueryTypes:         types,
	}, nil
}
