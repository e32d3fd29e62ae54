package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ShopOrder selects the ordering of shop listings.
type ShopOrder int

const (
	// OrderRatingDesc is the default listing order: -rating, name.
	OrderRatingDesc ShopOrder = iota
	OrderName
	OrderNewest
	OrderID
)

// ShopFilter narrows a shop query. Zero values mean "no constraint".
type ShopFilter struct {
	ActiveOnly bool
	MinRating  *decimal.Decimal
	Search     string // case-insensitive substring of name, address or contact
	Bound      *geo.Bound
	Order      ShopOrder
	Limit      int
	Offset     int
}

// Store defines the interface for storage operations
type Store interface {
	// Shop operations
	CreateShop(ctx context.Context, shop *models.Shop) error
	UpdateShop(ctx context.Context, shop *models.Shop) error
	GetShop(ctx context.Context, id uint) (*models.Shop, error)
	FindShops(ctx context.Context, filter ShopFilter) ([]*models.Shop, error)
	CountShops(ctx context.Context, filter ShopFilter) (int64, error)
	SetShopsActive(ctx context.Context, ids []uint, active bool) (int64, error)
	SetShopsRating(ctx context.Context, ids []uint, rating decimal.Decimal) (int64, error)
	GetShopTotals(ctx context.Context) (models.ShopTotals, error)
	CountShopsByRating(ctx context.Context) ([]models.RatingCount, error)
	CountShopsByMonth(ctx context.Context) ([]models.MonthCount, error)

	// User operations
	CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.UserProfile) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
	SetUsersActive(ctx context.Context, ids []uint, active bool) (int64, error)
	SetUsersStaff(ctx context.Context, ids []uint, staff bool) (int64, error)

	// Activity operations
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	GetRecentActivity(ctx context.Context, userID uint, limit int) ([]*models.ActivityLog, error)
	CountActivityByDay(ctx context.Context, since, until time.Time) ([]models.DayCount, error)
	CountActivityByAction(ctx context.Context, since, until time.Time) ([]models.KeyCount, error)
	CountActivityByUser(ctx context.Context, since, until time.Time, limit int) ([]models.KeyCount, error)
	CountActivityByHour(ctx context.Context, since, until time.Time) ([]models.HourCount, error)

	// Search query operations
	CreateSearchQuery(ctx context.Context, query *models.SearchQuery) error
	CountSearchesByDay(ctx context.Context, since, until time.Time) ([]models.DayCount, error)
	TopSearchLocations(ctx context.Context, limit int) ([]models.KeyCount, error)
	CountSearchesByRadius(ctx context.Context) ([]models.RadiusCount, error)
	CountSearchesByType(ctx context.Context) ([]models.KeyCount, error)

	// OTP operations
	ReplaceOTP(ctx context.Context, otp *models.OTPCode) error
	FindUnusedOTP(ctx context.Context, userID uint, code, purpose string) (*models.OTPCode, error)
	MarkOTPUsed(ctx context.Context, id uint) error
	DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error)

	// Session operations
	CreateUserSession(ctx context.Context, session *models.UserSession) error
	EndUserSession(ctx context.Context, userID uint, sessionKey string, at time.Time) (int64, error)
	EndStaleSessions(ctx context.Context, loginBefore, at time.Time) (int64, error)

	// Login attempt operations
	CreateLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedLoginAttempts(ctx context.Context, username string, since time.Time) (int64, error)
	GetRecentLoginAttempts(ctx context.Context, username string, since time.Time) ([]*models.LoginAttempt, error)

	Ping(ctx context.Context) error
}

// AnonymousUserKey labels activity rows without a user in per-user counts.
const AnonymousUserKey = "anonymous"
