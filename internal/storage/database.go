package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

// DatabaseStore implements Store on PostgreSQL through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

var _ Store = (*DatabaseStore)(nil)

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// bulk returns a handle that skips model hooks, for column updates that
// never carry a whole record.
func (s *DatabaseStore) bulk(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true})
}

// Shop operations

func (s *DatabaseStore) CreateShop(ctx context.Context, shop *models.Shop) error {
	if err := s.db.WithContext(ctx).Create(shop).Error; err != nil {
		return fmt.Errorf("create shop: %w", translateError(err))
	}
	return nil
}

func (s *DatabaseStore) UpdateShop(ctx context.Context, shop *models.Shop) error {
	if err := s.db.WithContext(ctx).Save(shop).Error; err != nil {
		return fmt.Errorf("update shop %d: %w", shop.ID, translateError(err))
	}
	return nil
}

func (s *DatabaseStore) GetShop(ctx context.Context, id uint) (*models.Shop, error) {
	var shop models.Shop
	if err := s.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &shop, nil
}

func (s *DatabaseStore) shopQuery(ctx context.Context, f ShopFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Shop{})
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.MinRating != nil {
		q = q.Where("rating >= ?", *f.MinRating)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(name ILIKE ? OR address ILIKE ? OR contact ILIKE ?)", like, like, like)
	}
	if b := f.Bound; b != nil {
		q = q.Where("latitude BETWEEN ? AND ?", b.MinLat, b.MaxLat)
		if !b.WrapsLng {
			q = q.Where("longitude BETWEEN ? AND ?", b.MinLng, b.MaxLng)
		}
	}
	return q
}

func (s *DatabaseStore) FindShops(ctx context.Context, f ShopFilter) ([]*models.Shop, error) {
	q := s.shopQuery(ctx, f)
	switch f.Order {
	case OrderName:
		q = q.Order("name ASC").Order("id ASC")
	case OrderNewest:
		q = q.Order("created_at DESC").Order("id DESC")
	case OrderID:
		q = q.Order("id ASC")
	default:
		q = q.Order("rating DESC").Order("name ASC").Order("id ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var shops []*models.Shop
	if err := q.Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("find shops: %w", err)
	}
	return shops, nil
}

func (s *DatabaseStore) CountShops(ctx context.Context, f ShopFilter) (int64, error) {
	var count int64
	if err := s.shopQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count shops: %w", err)
	}
	return count, nil
}

func (s *DatabaseStore) SetShopsActive(ctx context.Context, ids []uint, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.bulk(ctx).Model(&models.Shop{}).Where("id IN ?", ids).Update("is_active", active)
	return res.RowsAffected, res.Error
}

func (s *DatabaseStore) SetShopsRating(ctx context.Context, ids []uint, rating decimal.Decimal) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.bulk(ctx).Model(&models.Shop{}).Where("id IN ?", ids).Update("rating", models.ClampRating(rating))
	return res.RowsAffected, res.Error
}

func (s *DatabaseStore) GetShopTotals(ctx context.Context) (models.ShopTotals, error) {
	var totals models.ShopTotals
	err := s.db.WithContext(ctx).Model(&models.Shop{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active").
		Scan(&totals).Error
	if err != nil {
		return totals, fmt.Errorf("shop totals: %w", err)
	}
	totals.Inactive = totals.Total - totals.Active
	return totals, nil
}

func (s *DatabaseStore) CountShopsByRating(ctx context.Context) ([]models.RatingCount, error) {
	var rows []models.RatingCount
	err := s.db.WithContext(ctx).Model(&models.Shop{}).
		Select("rating, COUNT(*) AS count").
		Group("rating").Order("rating").
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) CountShopsByMonth(ctx context.Context) ([]models.MonthCount, error) {
	var rows []models.MonthCount
	err := s.db.WithContext(ctx).Model(&models.Shop{}).
		Select("to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, COUNT(*) AS count").
		Group("month").Order("month").
		Scan(&rows).Error
	return rows, err
}

// User operations

// CreateUserWithProfile inserts the user and its profile in one transaction.
func (s *DatabaseStore) CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(user).Error; err != nil {
			return err
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if err != nil {
		return fmt.Errorf("create user %q: %w", user.Username, translateError(err))
	}
	user.Profile = profile
	return nil
}

func (s *DatabaseStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Profile").Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *DatabaseStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (s *DatabaseStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error
	return count > 0, err
}

func (s *DatabaseStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	var users []*models.User
	q := s.db.WithContext(ctx).Preload("Profile").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *DatabaseStore) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return s.bulk(ctx).Model(&models.User{}).Where("id = ?", userID).Update("last_login", at).Error
}

func (s *DatabaseStore) SetUsersActive(ctx context.Context, ids []uint, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.bulk(ctx).Model(&models.User{}).Where("id IN ?", ids).Update("is_active", active)
	return res.RowsAffected, res.Error
}

func (s *DatabaseStore) SetUsersStaff(ctx context.Context, ids []uint, staff bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.bulk(ctx).Model(&models.User{}).Where("id IN ?", ids).Update("is_staff", staff)
	return res.RowsAffected, res.Error
}

// Activity operations

func (s *DatabaseStore) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *DatabaseStore) GetRecentActivity(ctx context.Context, userID uint, limit int) ([]*models.ActivityLog, error) {
	var logs []*models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *DatabaseStore) CountActivityByDay(ctx context.Context, since, until time.Time) ([]models.DayCount, error) {
	var rows []models.DayCount
	err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Select("to_char(activity_logs.timestamp, 'YYYY-MM-DD') AS date, COUNT(*) AS count").
		Where("activity_logs.timestamp BETWEEN ? AND ?", since, until).
		Group("date").Order("date").
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) CountActivityByAction(ctx context.Context, since, until time.Time) ([]models.KeyCount, error) {
	var rows []models.KeyCount
	err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Select(`action AS "key", COUNT(*) AS count`).
		Where("activity_logs.timestamp BETWEEN ? AND ?", since, until).
		Group("action").Order("count DESC").Order("action").
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) CountActivityByUser(ctx context.Context, since, until time.Time, limit int) ([]models.KeyCount, error) {
	var rows []models.KeyCount
	err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Select(`COALESCE(users.username, ?) AS "key", COUNT(activity_logs.id) AS count`, AnonymousUserKey).
		Joins("LEFT JOIN users ON users.id = activity_logs.user_id").
		Where("activity_logs.timestamp BETWEEN ? AND ?", since, until).
		Group("users.username").Order("count DESC").Order(`"key"`).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) CountActivityByHour(ctx context.Context, since, until time.Time) ([]models.HourCount, error) {
	var rows []models.HourCount
	err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Select("EXTRACT(HOUR FROM activity_logs.timestamp)::int AS hour, COUNT(*) AS count").
		Where("activity_logs.timestamp BETWEEN ? AND ?", since, until).
		Group("hour").Order("hour").
		Scan(&rows).Error
	return rows, err
}

// Search query operations

func (s *DatabaseStore) CreateSearchQuery(ctx context.Context, query *models.SearchQuery) error {
	return s.db.WithContext(ctx).Create(query).Error
}

func (s *DatabaseStore) CountSearchesByDay(ctx context.Context, since, until time.Time) ([]models.DayCount, error) {
	var rows []models.DayCount
	err := s.db.WithContext(ctx).Model(&models.SearchQuery{}).
		Select("to_char(search_queries.timestamp, 'YYYY-MM-DD') AS date, COUNT(*) AS count").
		Where("search_queries.timestamp BETWEEN ? AND ?", since, until).
		Group("date").Order("date").
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) TopSearchLocations(ctx context.Context, limit int) ([]models.KeyCount, error) {
	var rows []models.KeyCount
	err := s.db.WithContext(ctx).Model(&models.SearchQuery{}).
		Select(`user_location AS "key", COUNT(*) AS count`).
		Group("user_location").Order("count DESC").Order("user_location").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) CountSearchesByRadius(ctx context.Context) ([]models.RadiusCount, error) {
	var rows []models.RadiusCount
	err := s.db.WithContext(ctx).Model(&models.SearchQuery{}).
		Select("radius, COUNT(*) AS count").
		Group("radius").Order("radius").
		Scan(&rows).Error
	return rows, err
}

func (s *DatabaseStore) CountSearchesByType(ctx context.Context) ([]models.KeyCount, error) {
	var rows []models.KeyCount
	err := s.db.WithContext(ctx).Model(&models.SearchQuery{}).
		Select(`query_type AS "key", COUNT(*) AS count`).
		Group("query_type").Order("count DESC").Order("query_type").
		Scan(&rows).Error
	return rows, err
}

// OTP operations

// ReplaceOTP marks every unused code for the same user and purpose as used
// and inserts otp, in one transaction. The user row is locked first so
// concurrent replacements for one user run one after the other.
func (s *DatabaseStore) ReplaceOTP(ctx context.Context, otp *models.OTPCode) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&owner, otp.UserID).Error
		if err != nil {
			return err
		}

		err = tx.Model(&models.OTPCode{}).
			Where("user_id = ? AND purpose = ? AND is_used = ?", otp.UserID, otp.Purpose, false).
			Update("is_used", true).Error
		if err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
	if err != nil {
		return fmt.Errorf("replace otp: %w", translateError(err))
	}
	return nil
}

func (s *DatabaseStore) FindUnusedOTP(ctx context.Context, userID uint, code, purpose string) (*models.OTPCode, error) {
	var otp models.OTPCode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND code = ? AND purpose = ? AND is_used = ?", userID, code, purpose, false).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &otp, nil
}

// MarkOTPUsed consumes the code. It reports ErrNotFound when the code was
// already used, so a code cannot be redeemed twice.
func (s *DatabaseStore) MarkOTPUsed(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.OTPCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.OTPCode{})
	return res.RowsAffected, res.Error
}

// Session operations

func (s *DatabaseStore) CreateUserSession(ctx context.Context, session *models.UserSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *DatabaseStore) EndUserSession(ctx context.Context, userID uint, sessionKey string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND session_key = ? AND is_active = ?", userID, sessionKey, true).
		Updates(map[string]interface{}{"logout_time": at, "is_active": false})
	return res.RowsAffected, res.Error
}

func (s *DatabaseStore) EndStaleSessions(ctx context.Context, loginBefore, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("is_active = ? AND login_time < ?", true, loginBefore).
		Updates(map[string]interface{}{"logout_time": at, "is_active": false})
	return res.RowsAffected, res.Error
}

// Login attempt operations

func (s *DatabaseStore) CreateLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	return s.db.WithContext(ctx).Create(attempt).Error
}

func (s *DatabaseStore) CountFailedLoginAttempts(ctx context.Context, username string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.LoginAttempt{}).
		Where("username = ? AND success = ? AND attempt_time >= ?", username, false, since).
		Count(&count).Error
	return count, err
}

func (s *DatabaseStore) GetRecentLoginAttempts(ctx context.Context, username string, since time.Time) ([]*models.LoginAttempt, error) {
	var attempts []*models.LoginAttempt
	err := s.db.WithContext(ctx).
		Where("username = ? AND attempt_time >= ?", username, since).
		Order("attempt_time DESC").
		Find(&attempts).Error
	return attempts, err
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// escapeLike escapes the ILIKE wildcards in a user-supplied term.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
