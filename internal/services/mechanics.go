package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// PageSize is the number of shops per listing page.
const PageSize = 12

var ErrShopNotFound = errors.New("mechanic not found")

// Page is one page of a shop listing.
type Page struct {
	Shops       []*models.Shop `json:"mechanics"`
	Number      int            `json:"number"`
	NumPages    int            `json:"num_pages"`
	Total       int64          `json:"count"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// ListParams filters the full mechanic listing.
type ListParams struct {
	Search string
	Rating string
	Sort   string
	Page   string
}

// HomeParams filters the home page listing. Radius and SortBy are echoed
// back to the client.
type HomeParams struct {
	Radius string
	Rating string
	SortBy string
	Page   string
}

type HomeResult struct {
	Page
	Radius float64 `json:"radius"`
	Rating float64 `json:"rating"`
	SortBy string  `json:"sort_by"`
}

// MechanicService serves the browsing views: home, listing and detail.
type MechanicService struct {
	store storage.Store
}

func NewMechanicService(store storage.Store) *MechanicService {
	return &MechanicService{store: store}
}

func (s *MechanicService) Home(ctx context.Context, p HomeParams) (*HomeResult, error) {
	radius := parseFloatDefault(p.Radius, DefaultRadiusKm)
	rating := parseFloatDefault(p.Rating, 0)
	sortBy := strings.TrimSpace(p.SortBy)
	if sortBy == "" {
		sortBy = "distance"
	}

	filter := storage.ShopFilter{ActiveOnly: true, Order: storage.OrderRatingDesc}
	if rating > 0 {
		min := decimal.NewFromFloat(rating)
		filter.MinRating = &min
	}

	page, err := s.paginate(ctx, filter, p.Page)
	if err != nil {
		return nil, err
	}
	return &HomeResult{Page: *page, Radius: radius, Rating: rating, SortBy: sortBy}, nil
}

func (s *MechanicService) List(ctx context.Context, p ListParams) (*Page, error) {
	filter := storage.ShopFilter{
		ActiveOnly: true,
		Search:     strings.TrimSpace(p.Search),
		Order:      storage.OrderName,
	}
	if r, ok := parseFinite(p.Rating); ok {
		min := decimal.NewFromFloat(r)
		filter.MinRating = &min
	}
	if p.Sort == "rating" {
		filter.Order = storage.OrderRatingDesc
	}
	return s.paginate(ctx, filter, p.Page)
}

// Detail returns an active shop. When origin is non-nil the shop carries
// its distance from origin.
func (s *MechanicService) Detail(ctx context.Context, id uint, origin *geo.Point) (*models.Shop, error) {
	shop, err := s.store.GetShop(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shop %d: %w", id, err)
	}
	if !shop.IsActive {
		return nil, ErrShopNotFound
	}

	if origin != nil && origin.Valid() {
		d := geo.RoundKm(geo.DistanceKm(*origin, shop.Point()))
		shop.Distance = &d
	}
	return shop, nil
}

func (s *MechanicService) paginate(ctx context.Context, filter storage.ShopFilter, rawPage string) (*Page, error) {
	total, err := s.store.CountShops(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count shops: %w", err)
	}

	numPages := int((total + PageSize - 1) / PageSize)
	if numPages < 1 {
		numPages = 1
	}
	number := PageNumber(rawPage, numPages)

	filter.Limit = PageSize
	filter.Offset = (number - 1) * PageSize
	shops, err := s.store.FindShops(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find shops: %w", err)
	}

	return &Page{
		Shops:       shops,
		Number:      number,
		NumPages:    numPages,
		Total:       total,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
	}, nil
}

// PageNumber resolves a requested page the forgiving way: anything that
// is not an integer gives the first page, anything out of range the last.
func PageNumber(raw string, numPages int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	if n < 1 || n > numPages {
		return numPages
	}
	return n
}

func parseFloatDefault(raw string, def float64) float64 {
	if v, ok := parseFinite(raw); ok {
		return v
	}
	return def
}

// parseFinite parses raw as a float, rejecting blanks, NaN and infinities.
func parseFinite(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !IsFinite(v) {
		return 0, false
	}
	return v, true
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
