package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

// MemoryStore keeps everything in process memory. It backs the test
// suite and USE_MEMORY_STORE=true; it is not durable.
type MemoryStore struct {
	shops         map[uint]*models.Shop
	users         map[uint]*models.User
	profiles      map[uint]*models.UserProfile // by user id
	activity      []*models.ActivityLog
	searches      []*models.SearchQuery
	otps          map[uint]*models.OTPCode
	sessions      map[uint]*models.UserSession
	loginAttempts []*models.LoginAttempt

	// Mutexes for thread safety
	shopMu    sync.RWMutex
	userMu    sync.RWMutex
	logMu     sync.RWMutex
	otpMu     sync.Mutex
	sessionMu sync.Mutex

	// Counters for ID generation
	shopCounter     uint
	userCounter     uint
	profileCounter  uint
	activityCounter uint
	searchCounter   uint
	otpCounter      uint
	sessionCounter  uint
	attemptCounter  uint

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shops:    make(map[uint]*models.Shop),
		users:    make(map[uint]*models.User),
		profiles: make(map[uint]*models.UserProfile),
		otps:     make(map[uint]*models.OTPCode),
		sessions: make(map[uint]*models.UserSession),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// SetClock replaces the time source used for generated timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.now = now
}

// Shop operations

func (m *MemoryStore) CreateShop(ctx context.Context, shop *models.Shop) error {
	if err := shop.Normalize(); err != nil {
		return fmt.Errorf("create shop: %w", err)
	}

	m.shopMu.Lock()
	defer m.shopMu.Unlock()

	m.shopCounter++
	now := m.now()
	shop.ID = m.shopCounter
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = now
	}
	shop.UpdatedAt = now

	copied := *shop
	m.shops[shop.ID] = &copied
	return nil
}

func (m *MemoryStore) UpdateShop(ctx context.Context, shop *models.Shop) error {
	if err := shop.Normalize(); err != nil {
		return fmt.Errorf("update shop %d: %w", shop.ID, err)
	}

	m.shopMu.Lock()
	defer m.shopMu.Unlock()

	existing, ok := m.shops[shop.ID]
	if !ok {
		return ErrNotFound
	}
	shop.CreatedAt = existing.CreatedAt
	shop.UpdatedAt = m.now()
	copied := *shop
	copied.Distance = nil
	m.shops[shop.ID] = &copied
	return nil
}

func (m *MemoryStore) GetShop(ctx context.Context, id uint) (*models.Shop, error) {
	m.shopMu.RLock()
	defer m.shopMu.RUnlock()

	shop, ok := m.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *shop
	return &copied, nil
}

func (m *MemoryStore) matchShops(f ShopFilter) []*models.Shop {
	term := strings.ToLower(strings.TrimSpace(f.Search))

	var out []*models.Shop
	for _, shop := range m.shops {
		if f.ActiveOnly && !shop.IsActive {
			continue
		}
		if f.MinRating != nil && shop.Rating.LessThan(*f.MinRating) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(shop.Name), term) &&
			!strings.Contains(strings.ToLower(shop.Address), term) &&
			!strings.Contains(strings.ToLower(shop.Contact), term) {
			continue
		}
		if f.Bound != nil && !f.Bound.Contains(shop.Point()) {
			continue
		}
		copied := *shop
		out = append(out, &copied)
	}
	return out
}

func (m *MemoryStore) FindShops(ctx context.Context, f ShopFilter) ([]*models.Shop, error) {
	m.shopMu.RLock()
	shops := m.matchShops(f)
	m.shopMu.RUnlock()

	sort.Slice(shops, func(i, j int) bool {
		a, b := shops[i], shops[j]
		switch f.Order {
		case OrderName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case OrderNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		case OrderID:
		default:
			if !a.Rating.Equal(b.Rating) {
				return a.Rating.GreaterThan(b.Rating)
			}
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		}
		return a.ID < b.ID
	})

	return paginate(shops, f.Limit, f.Offset), nil
}

func (m *MemoryStore) CountShops(ctx context.Context, f ShopFilter) (int64, error) {
	m.shopMu.RLock()
	defer m.shopMu.RUnlock()
	return int64(len(m.matchShops(f))), nil
}

func (m *MemoryStore) SetShopsActive(ctx context.Context, ids []uint, active bool) (int64, error) {
	m.shopMu.Lock()
	defer m.shopMu.Unlock()

	var n int64
	for _, id := range ids {
		if shop, ok := m.shops[id]; ok {
			shop.IsActive = active
			shop.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SetShopsRating(ctx context.Context, ids []uint, rating decimal.Decimal) (int64, error) {
	m.shopMu.Lock()
	defer m.shopMu.Unlock()

	rating = models.ClampRating(rating)
	var n int64
	for _, id := range ids {
		if shop, ok := m.shops[id]; ok {
			shop.Rating = rating
			shop.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetShopTotals(ctx context.Context) (models.ShopTotals, error) {
	m.shopMu.RLock()
	defer m.shopMu.RUnlock()

	var totals models.ShopTotals
	for _, shop := range m.shops {
		totals.Total++
		if shop.IsActive {
			totals.Active++
		}
	}
	totals.Inactive = totals.Total - totals.Active
	return totals, nil
}

func (m *MemoryStore) CountShopsByRating(ctx context.Context) ([]models.RatingCount, error) {
	m.shopMu.RLock()
	counts := make(map[string]*models.RatingCount)
	for _, shop := range m.shops {
		key := shop.Rating.StringFixed(2)
		if c, ok := counts[key]; ok {
			c.Count++
		} else {
			counts[key] = &models.RatingCount{Rating: shop.Rating, Count: 1}
		}
	}
	m.shopMu.RUnlock()

	rows := make([]models.RatingCount, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, *c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rating.LessThan(rows[j].Rating) })
	return rows, nil
}

func (m *MemoryStore) CountShopsByMonth(ctx context.Context) ([]models.MonthCount, error) {
	m.shopMu.RLock()
	counts := make(map[string]int64)
	for _, shop := range m.shops {
		counts[shop.CreatedAt.UTC().Format("2006-01")]++
	}
	m.shopMu.RUnlock()

	rows := make([]models.MonthCount, 0, len(counts))
	for month, n := range counts {
		rows = append(rows, models.MonthCount{Month: month, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows, nil
}

// User operations

func (m *MemoryStore) CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.UserProfile) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return fmt.Errorf("create user %q: %w: username", user.Username, ErrDuplicate)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user %q: %w: email", user.Username, ErrDuplicate)
		}
	}

	now := m.now()
	m.userCounter++
	user.ID = m.userCounter
	user.CreatedAt = now
	user.UpdatedAt = now

	m.profileCounter++
	profile.ID = m.profileCounter
	profile.UserID = user.ID
	profile.CreatedAt = now
	profile.UpdatedAt = now

	storedUser := *user
	storedUser.Profile = nil
	storedProfile := *profile
	m.users[user.ID] = &storedUser
	m.profiles[user.ID] = &storedProfile

	user.Profile = profile
	return nil
}

// userWithProfile copies u and attaches its profile. Caller holds userMu.
func (m *MemoryStore) userWithProfile(u *models.User) *models.User {
	copied := *u
	if p, ok := m.profiles[u.ID]; ok {
		profile := *p
		copied.Profile = &profile
	}
	return &copied
}

func (m *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.userWithProfile(user), nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	for _, user := range m.users {
		if user.Username == username {
			return m.userWithProfile(user), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetUserByUsername(ctx, username)
	return err == nil, nil
}

func (m *MemoryStore) EmailExists(ctx context.Context, email string) (bool, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	m.userMu.RLock()
	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, m.userWithProfile(user))
	}
	m.userMu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return paginate(users, limit, offset), nil
}

func (m *MemoryStore) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = &at
	return nil
}

func (m *MemoryStore) SetUsersActive(ctx context.Context, ids []uint, active bool) (int64, error) {
	return m.updateUsers(ids, func(u *models.User) { u.IsActive = active })
}

func (m *MemoryStore) SetUsersStaff(ctx context.Context, ids []uint, staff bool) (int64, error) {
	return m.updateUsers(ids, func(u *models.User) { u.IsStaff = staff })
}

func (m *MemoryStore) updateUsers(ids []uint, apply func(*models.User)) (int64, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	var n int64
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			apply(user)
			user.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

// Activity operations

func (m *MemoryStore) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.activityCounter++
	entry.ID = m.activityCounter
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	copied := *entry
	m.activity = append(m.activity, &copied)
	return nil
}

func (m *MemoryStore) GetRecentActivity(ctx context.Context, userID uint, limit int) ([]*models.ActivityLog, error) {
	m.logMu.RLock()
	var logs []*models.ActivityLog
	for _, entry := range m.activity {
		if entry.UserID != nil && *entry.UserID == userID {
			copied := *entry
			logs = append(logs, &copied)
		}
	}
	m.logMu.RUnlock()

	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].Timestamp.Equal(logs[j].Timestamp) {
			return logs[i].Timestamp.After(logs[j].Timestamp)
		}
		return logs[i].ID > logs[j].ID
	})
	return paginate(logs, limit, 0), nil
}

// activityBetween returns activity rows with since <= timestamp <= until.
// Caller holds logMu.
func (m *MemoryStore) activityBetween(since, until time.Time) []*models.ActivityLog {
	var out []*models.ActivityLog
	for _, entry := range m.activity {
		if !entry.Timestamp.Before(since) && !entry.Timestamp.After(until) {
			out = append(out, entry)
		}
	}
	return out
}

func (m *MemoryStore) CountActivityByDay(ctx context.Context, since, until time.Time) ([]models.DayCount, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	counts := make(map[string]int64)
	for _, entry := range m.activityBetween(since, until) {
		counts[entry.Timestamp.UTC().Format("2006-01-02")]++
	}
	return dayCounts(counts), nil
}

func (m *MemoryStore) CountActivityByAction(ctx context.Context, since, until time.Time) ([]models.KeyCount, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	counts := make(map[string]int64)
	for _, entry := range m.activityBetween(since, until) {
		counts[entry.Action]++
	}
	return keyCountsDesc(counts, 0), nil
}

func (m *MemoryStore) CountActivityByUser(ctx context.Context, since, until time.Time, limit int) ([]models.KeyCount, error) {
	m.logMu.RLock()
	entries := m.activityBetween(since, until)
	m.logMu.RUnlock()

	m.userMu.RLock()
	counts := make(map[string]int64)
	for _, entry := range entries {
		key := AnonymousUserKey
		if entry.UserID != nil {
			if user, ok := m.users[*entry.UserID]; ok {
				key = user.Username
			}
		}
		counts[key]++
	}
	m.userMu.RUnlock()

	return keyCountsDesc(counts, limit), nil
}

func (m *MemoryStore) CountActivityByHour(ctx context.Context, since, until time.Time) ([]models.HourCount, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	counts := make(map[int]int64)
	for _, entry := range m.activityBetween(since, until) {
		counts[entry.Timestamp.UTC().Hour()]++
	}
	rows := make([]models.HourCount, 0, len(counts))
	for hour, n := range counts {
		rows = append(rows, models.HourCount{Hour: hour, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Hour < rows[j].Hour })
	return rows, nil
}

// Search query operations

func (m *MemoryStore) CreateSearchQuery(ctx context.Context, query *models.SearchQuery) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.searchCounter++
	query.ID = m.searchCounter
	if query.Timestamp.IsZero() {
		query.Timestamp = m.now()
	}
	copied := *query
	m.searches = append(m.searches, &copied)
	return nil
}

func (m *MemoryStore) CountSearchesByDay(ctx context.Context, since, until time.Time) ([]models.DayCount, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	counts := make(map[string]int64)
	for _, q := range m.searches {
		if !q.Timestamp.Before(since) && !q.Timestamp.After(until) {
			counts[q.Timestamp.UTC().Format("2006-01-02")]++
		}
	}
	return dayCounts(counts), nil
}

func (m *MemoryStore) TopSearchLocations(ctx context.Context, limit int) ([]models.KeyCount, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	counts := make(map[string]int64)
	for _, q := range m.searches {
		counts[q.UserLocation]++
	}
	return keyCountsDesc(counts, limit), nil
}

func (m *MemoryStore) CountSearchesByRadius(ctx context.Context) ([]models.RadiusCount, error) {
	m.logMu.RLock()
	counts := make(map[int]int64)
	for _, q := range m.searches {
		counts[q.Radius]++
	}
	m.logMu.RUnlock()

	rows := make([]models.RadiusCount, 0, len(counts))
	for radius, n := range counts {
		rows = append(rows, models.RadiusCount{Radius: radius, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Radius < rows[j].Radius })
	return rows, nil
}

func (m *MemoryStore) CountSearchesByType(ctx context.Context) ([]models.KeyCount, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	counts := make(map[string]int64)
	for _, q := range m.searches {
		counts[q.QueryType]++
	}
	return keyCountsDesc(counts, 0), nil
}

// OTP operations

func (m *MemoryStore) ReplaceOTP(ctx context.Context, otp *models.OTPCode) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	for _, existing := range m.otps {
		if existing.UserID == otp.UserID && existing.Purpose == otp.Purpose && !existing.IsUsed {
			existing.IsUsed = true
		}
	}

	m.otpCounter++
	otp.ID = m.otpCounter
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = m.now()
	}
	copied := *otp
	m.otps[otp.ID] = &copied
	return nil
}

func (m *MemoryStore) FindUnusedOTP(ctx context.Context, userID uint, code, purpose string) (*models.OTPCode, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var found *models.OTPCode
	for _, otp := range m.otps {
		if otp.UserID != userID || otp.Code != code || otp.Purpose != purpose || otp.IsUsed {
			continue
		}
		if found == nil || otp.ID > found.ID {
			found = otp
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	copied := *found
	return &copied, nil
}

func (m *MemoryStore) MarkOTPUsed(ctx context.Context, id uint) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp, ok := m.otps[id]
	if !ok || otp.IsUsed {
		return ErrNotFound
	}
	otp.IsUsed = true
	return nil
}

// GetOTP returns a copy of a stored code. Used by tests to inspect state.
func (m *MemoryStore) GetOTP(id uint) (*models.OTPCode, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp, ok := m.otps[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *otp
	return &copied, nil
}

func (m *MemoryStore) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var n int64
	for id, otp := range m.otps {
		if otp.ExpiresAt.Before(before) {
			delete(m.otps, id)
			n++
		}
	}
	return n, nil
}

// Session operations

func (m *MemoryStore) CreateUserSession(ctx context.Context, session *models.UserSession) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	m.sessionCounter++
	session.ID = m.sessionCounter
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *MemoryStore) EndUserSession(ctx context.Context, userID uint, sessionKey string, at time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.SessionKey == sessionKey && s.IsActive {
			s.End(at)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) EndStaleSessions(ctx context.Context, loginBefore, at time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var n int64
	for _, s := range m.sessions {
		if s.IsActive && s.LoginTime.Before(loginBefore) {
			s.End(at)
			n++
		}
	}
	return n, nil
}

// ListUserSessions returns copies of the sessions of one user, oldest first.
func (m *MemoryStore) ListUserSessions(userID uint) []*models.UserSession {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var out []*models.UserSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Login attempt operations

func (m *MemoryStore) CreateLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.attemptCounter++
	attempt.ID = m.attemptCounter
	if attempt.AttemptTime.IsZero() {
		attempt.AttemptTime = m.now()
	}
	copied := *attempt
	m.loginAttempts = append(m.loginAttempts, &copied)
	return nil
}

func (m *MemoryStore) CountFailedLoginAttempts(ctx context.Context, username string, since time.Time) (int64, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	var n int64
	for _, a := range m.loginAttempts {
		if a.Username == username && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetRecentLoginAttempts(ctx context.Context, username string, since time.Time) ([]*models.LoginAttempt, error) {
	m.logMu.RLock()
	var out []*models.LoginAttempt
	for _, a := range m.loginAttempts {
		if a.Username == username && !a.AttemptTime.Before(since) {
			copied := *a
			out = append(out, &copied)
		}
	}
	m.logMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].AttemptTime.Equal(out[j].AttemptTime) {
			return out[i].AttemptTime.After(out[j].AttemptTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[len(items):]
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func dayCounts(counts map[string]int64) []models.DayCount {
	rows := make([]models.DayCount, 0, len(counts))
	for day, n := range counts {
		rows = append(rows, models.DayCount{Date: day, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

func keyCountsDesc(counts map[string]int64, limit int) []models.KeyCount {
	rows := make([]models.KeyCount, 0, len(counts))
	for key, n := range counts {
		rows = append(rows, models.KeyCount{Key: key, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return paginate(rows, limit, 0)
}
