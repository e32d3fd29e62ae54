package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// ExportHeader is the first row of the shop CSV export.
var ExportHeader = []string{"Name", "Address", "Contact", "Rating", "Latitude", "Longitude", "Status", "Created"}

// ShopInput creates or replaces a shop.
type ShopInput struct {
	Name         string   `json:"name" form:"name" validate:"required,max=200"`
	Latitude     *float64 `json:"latitude" form:"latitude" validate:"required,latitude"`
	Longitude    *float64 `json:"longitude" form:"longitude" validate:"required,longitude"`
	Address      string   `json:"address" form:"address" validate:"required"`
	Contact      string   `json:"contact" form:"contact" validate:"max=20"`
	Rating       *float64 `json:"rating" form:"rating"`
	WorkingHours string   `json:"working_hours" form:"working_hours"`
	ImageURL     string   `json:"image_url" form:"image_url" validate:"omitempty,url"`
	IsActive     *bool    `json:"is_active" form:"is_active"`
}

const userPageSize = 50

var ErrInvalidRating = errors.New("rating must be a finite number")

// BulkResult reports the outcome of a bulk action.
type BulkResult struct {
	Updated int64  `json:"updated"`
	Message string `json:"message"`
}

// AdminService carries out staff actions on shops and users. Every
// change is written to the activity log.
type AdminService struct {
	store    storage.Store
	activity *ActivityLogger
	log      *zap.Logger
	now      func() time.Time
}

func NewAdminService(store storage.Store, activity *ActivityLogger, log *zap.Logger) *AdminService {
	return &AdminService{store: store, activity: activity, log: log.Named("admin"), now: time.Now}
}

func (s *AdminService) audit(ctx context.Context, meta RequestMeta, details string) {
	s.log.Info("admin action", zap.String("details", details))
	if s.activity != nil {
		s.activity.Log(ctx, meta, models.ActionAdminAction, details)
	}
}

// ListShops pages through all shops, inactive included, by name.
func (s *AdminService) ListShops(ctx context.Context, search, rawPage string) (*Page, error) {
	mechanics := NewMechanicService(s.store)
	return mechanics.paginate(ctx, storage.ShopFilter{
		Search: strings.TrimSpace(search),
		Order:  storage.OrderName,
	}, rawPage)
}

func (s *AdminService) GetShop(ctx context.Context, id uint) (*models.Shop, error) {
	shop, err := s.store.GetShop(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrShopNotFound
	}
	return shop, err
}

func (s *AdminService) CreateShop(ctx context.Context, in *ShopInput, meta RequestMeta) (*models.Shop, error) {
	shop := &models.Shop{IsActive: true}
	if err := applyShopInput(shop, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("create shop: %w", err)
	}
	s.audit(ctx, meta, fmt.Sprintf("Mechanic created: %s (ID: %d)", shop.Name, shop.ID))
	return shop, nil
}

func (s *AdminService) UpdateShop(ctx context.Context, id uint, in *ShopInput, meta RequestMeta) (*models.Shop, error) {
	shop, err := s.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyShopInput(shop, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("update shop %d: %w", id, err)
	}
	s.audit(ctx, meta, fmt.Sprintf("Mechanic updated: %s (ID: %d)", shop.Name, shop.ID))
	return shop, nil
}

func applyShopInput(shop *models.Shop, in *ShopInput) error {
	errs, err := validateStruct(in)
	if err != nil {
		return err
	}
	if errs != nil {
		return errs
	}

	shop.Name = in.Name
	shop.Latitude = decimal.NewFromFloat(*in.Latitude).Round(6)
	shop.Longitude = decimal.NewFromFloat(*in.Longitude).Round(6)
	shop.Address = in.Address
	shop.Contact = in.Contact
	shop.WorkingHours = in.WorkingHours
	shop.ImageURL = in.ImageURL
	if in.Rating != nil {
		if !IsFinite(*in.Rating) {
			return FieldErrors{"rating": "Enter a number."}
		}
		shop.Rating = models.ClampRating(decimal.NewFromFloat(*in.Rating))
	}
	if in.IsActive != nil {
		shop.IsActive = *in.IsActive
	}
	return nil
}

func (s *AdminService) SetShopsActive(ctx context.Context, ids []uint, active bool, meta RequestMeta) (*BulkResult, error) {
	n, err := s.store.SetShopsActive(ctx, ids, active)
	if err != nil {
		return nil, fmt.Errorf("set shops active: %w", err)
	}
	verb := "deactivated"
	if active {
		verb = "activated"
	}
	msg := fmt.Sprintf("%d mechanics have been %s.", n, verb)
	s.audit(ctx, meta, msg)
	return &BulkResult{Updated: n, Message: msg}, nil
}

func (s *AdminService) BulkUpdateRating(ctx context.Context, ids []uint, rating float64, meta RequestMeta) (*BulkResult, error) {
	if !IsFinite(rating) {
		return nil, ErrInvalidRating
	}
	r := models.ClampRating(decimal.NewFromFloat(rating))
	n, err := s.store.SetShopsRating(ctx, ids, r)
	if err != nil {
		return nil, fmt.Errorf("set shops rating: %w", err)
	}
	msg := fmt.Sprintf("%d mechanics have been updated with rating %s.", n, r.StringFixed(2))
	s.audit(ctx, meta, msg)
	return &BulkResult{Updated: n, Message: msg}, nil
}

// ExportShopsCSV writes the selected shops, or every shop when ids is
// empty, as CSV ordered by name.
func (s *AdminService) ExportShopsCSV(ctx context.Context, ids []uint, w io.Writer, meta RequestMeta) (int, error) {
	shops, err := s.store.FindShops(ctx, storage.ShopFilter{Order: storage.OrderName})
	if err != nil {
		return 0, fmt.Errorf("find shops: %w", err)
	}

	if len(ids) > 0 {
		wanted := make(map[uint]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
		selected := shops[:0]
		for _, shop := range shops {
			if wanted[shop.ID] {
				selected = append(selected, shop)
			}
		}
		shops = selected
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, err
	}
	for _, shop := range shops {
		status := "Inactive"
		if shop.IsActive {
			status = "Active"
		}
		row := []string{
			shop.Name,
			shop.Address,
			shop.Contact,
			shop.Rating.StringFixed(2),
			shop.Latitude.StringFixed(6),
			shop.Longitude.StringFixed(6),
			status,
			shop.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	s.audit(ctx, meta, fmt.Sprintf("Exported %d mechanics to CSV", len(shops)))
	return len(shops), nil
}

func (s *AdminService) ListUsers(ctx context.Context, rawPage string) ([]*models.User, error) {
	page, err := strconv.Atoi(strings.TrimSpace(rawPage))
	if err != nil || page < 1 {
		page = 1
	}
	users, err := s.store.ListUsers(ctx, userPageSize, (page-1)*userPageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *AdminService) SetUsersActive(ctx context.Context, ids []uint, active bool, meta RequestMeta) (*BulkResult, error) {
	n, err := s.store.SetUsersActive(ctx, ids, active)
	if err != nil {
		return nil, fmt.Errorf("set users active: %w", err)
	}
	verb := "deactivated"
	if active {
		verb = "activated"
	}
	msg := fmt.Sprintf("%d users have been %s.", n, verb)
	s.audit(ctx, meta, msg)
	return &BulkResult{Updated: n, Message: msg}, nil
}

func (s *AdminService) SetUsersStaff(ctx context.Context, ids []uint, staff bool, meta RequestMeta) (*BulkResult, error) {
	n, err := s.store.SetUsersStaff(ctx, ids, staff)
	if err != nil {
		return nil, fmt.Errorf("set users staff: %w", err)
	}
	msg := fmt.Sprintf("%d users have been removed from staff.", n)
	if staff {
		msg = fmt.Sprintf("%d users have been added to staff.", n)
	}
	s.audit(ctx, meta, msg)
	return &BulkResult{Updated: n, Message: msg}, nil
}

// RecentLoginAttempts lists attempts for a username within the last hours.
func (s *AdminService) RecentLoginAttempts(ctx context.Context, username string, hours int) ([]*models.LoginAttempt, error) {
	if hours <= 0 {
		hours = 24
	}
	since := s.now().Add(-time.Duration(hours) * time.Hour)
	attempts, err := s.store.GetRecentLoginAttempts(ctx, strings.TrimSpace(username), since)
	if err != nil {
		return nil, fmt.Errorf("recent login attempts: %w", err)
	}
	return attempts, nil
}
