package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
	"github.com/Ananth-NQI/mechlocator-backend/internal/metrics"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// DefaultRadiusKm is used when a search does not name a radius.
const DefaultRadiusKm = 10.0

var ErrInvalidSearch = errors.New("invalid search parameters")

type SearchParams struct {
	Origin    geo.Point
	RadiusKm  float64
	MinRating float64
}

// SearchService finds active shops around a coordinate.
type SearchService struct {
	store    storage.Store
	activity *ActivityLogger
}

func NewSearchService(store storage.Store, activity *ActivityLogger) *SearchService {
	return &SearchService{store: store, activity: activity}
}

// Search returns active shops with rating >= MinRating whose geodesic
// distance is within RadiusKm. The distance attached to each result is
// rounded to one decimal. Results are ordered by distance, then by shop id.
func (s *SearchService) Search(ctx context.Context, p SearchParams) ([]*models.Shop, error) {
	if !p.Origin.Valid() || math.IsNaN(p.RadiusKm) || math.IsInf(p.RadiusKm, 0) ||
		math.IsNaN(p.MinRating) || math.IsInf(p.MinRating, 0) {
		return nil, ErrInvalidSearch
	}

	minRating := decimal.NewFromFloat(p.MinRating)
	bound := geo.BoundAround(p.Origin, p.RadiusKm)
	candidates, err := s.store.FindShops(ctx, storage.ShopFilter{
		ActiveOnly: true,
		MinRating:  &minRating,
		Bound:      &bound,
		Order:      storage.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("find shops: %w", err)
	}

	results := make([]*models.Shop, 0, len(candidates))
	for _, shop := range candidates {
		km := geo.DistanceKm(p.Origin, shop.Point())
		if km > p.RadiusKm {
			continue
		}
		d := geo.RoundKm(km)
		shop.Distance = &d
		results = append(results, shop)
	}

	sort.SliceStable(results, func(i, j int) bool {
		di, dj := *results[i].Distance, *results[j].Distance
		if di != dj {
			return di < dj
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// SearchAndRecord runs Search and writes the SearchQuery and activity
// rows for it.
func (s *SearchService) SearchAndRecord(ctx context.Context, p SearchParams, meta RequestMeta) ([]*models.Shop, error) {
	results, err := s.Search(ctx, p)
	if err != nil {
		return nil, err
	}

	queryType := models.QueryTypeDistance
	if p.MinRating > 0 {
		queryType = models.QueryTypeRating
	}
	metrics.SearchesTotal.WithLabelValues(queryType).Inc()
	metrics.SearchResults.Observe(float64(len(results)))

	if s.activity != nil {
		s.activity.RecordSearch(ctx, &models.SearchQuery{
			QueryType:    queryType,
			UserLocation: p.Origin.String(),
			Radius:       int(p.RadiusKm),
			ResultsCount: len(results),
			UserID:       meta.UserID,
		})
		s.activity.Log(ctx, meta, models.ActionSearch, fmt.Sprintf("Mechanic search: %d results", len(results)))
	}
	return results, nil
}
