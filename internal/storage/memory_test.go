package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

func newShop(name string, lat, lng, rating float64, active bool) *models.Shop {
	return &models.Shop{
		Name:      name,
		Latitude:  decimal.NewFromFloat(lat),
		Longitude: decimal.NewFromFloat(lng),
		Address:   name + " street",
		Contact:   "+1-555-0101",
		Rating:    decimal.NewFromFloat(rating),
		IsActive:  active,
	}
}

func seedShops(t *testing.T, store *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	for _, s := range []*models.Shop{
		newShop("Bravo Garage", 40.7128, -74.0060, 4.8, true),
		newShop("alpha motors", 40.7580, -73.9855, 4.2, true),
		newShop("Charlie Tires", 39.9526, -75.1652, 3.5, true),
		newShop("Delta Closed", 40.7130, -74.0050, 5.0, false),
	} {
		require.NoError(t, store.CreateShop(ctx, s))
	}
}

func TestMemoryStoreFindShopsFilters(t *testing.T) {
	store := NewMemoryStore()
	seedShops(t, store)
	ctx := context.Background()

	minRating := decimal.NewFromFloat(4.0)
	shops, err := store.FindShops(ctx, ShopFilter{ActiveOnly: true, MinRating: &minRating})
	require.NoError(t, err)
	require.Len(t, shops, 2)
	assert.Equal(t, "Bravo Garage", shops[0].Name)
	assert.Equal(t, "alpha motors", shops[1].Name)

	shops, err = store.FindShops(ctx, ShopFilter{ActiveOnly: true, Search: "MOTORS"})
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "alpha motors", shops[0].Name)

	shops, err = store.FindShops(ctx, ShopFilter{Search: "555-0101"})
	require.NoError(t, err)
	assert.Len(t, shops, 4)

	bound := geo.BoundAround(geo.Point{Lat: 40.7128, Lng: -74.0060}, 10)
	shops, err = store.FindShops(ctx, ShopFilter{ActiveOnly: true, Bound: &bound})
	require.NoError(t, err)
	assert.Len(t, shops, 2)
}

func TestMemoryStoreFindShopsOrderAndPaging(t *testing.T) {
	store := NewMemoryStore()
	seedShops(t, store)
	ctx := context.Background()

	shops, err := store.FindShops(ctx, ShopFilter{Order: OrderName})
	require.NoError(t, err)
	names := make([]string, len(shops))
	for i, s := range shops {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"Bravo Garage", "Charlie Tires", "Delta Closed", "alpha motors"}, names)

	page, err := store.FindShops(ctx, ShopFilter{Order: OrderRatingDesc, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Bravo Garage", page[0].Name)
	assert.Equal(t, "alpha motors", page[1].Name)

	count, err := store.CountShops(ctx, ShopFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStoreShopAdmin(t *testing.T) {
	store := NewMemoryStore()
	seedShops(t, store)
	ctx := context.Background()

	n, err := store.SetShopsActive(ctx, []uint{1, 2, 99}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	totals, err := store.GetShopTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ShopTotals{Total: 4, Active: 1, Inactive: 3}, totals)

	n, err = store.SetShopsRating(ctx, []uint{3}, decimal.NewFromInt(9))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	shop, err := store.GetShop(ctx, 3)
	require.NoError(t, err)
	assert.True(t, shop.Rating.Equal(models.MaxRating))

	_, err = store.GetShop(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCreateShopRejectsBadCoordinates(t *testing.T) {
	store := NewMemoryStore()
	err := store.CreateShop(context.Background(), newShop("Nowhere", 120, 0, 4, true))
	assert.Error(t, err)
}

func TestMemoryStoreUserDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	user := &models.User{Username: "john_doe", Email: "john@example.com", IsActive: true}
	require.NoError(t, store.CreateUserWithProfile(ctx, user, &models.UserProfile{Phone: "5551234567"}))
	assert.Equal(t, uint(1), user.ID)
	require.NotNil(t, user.Profile)
	assert.Equal(t, user.ID, user.Profile.UserID)

	err := store.CreateUserWithProfile(ctx, &models.User{Username: "other", Email: "JOHN@example.com"}, &models.UserProfile{})
	assert.True(t, errors.Is(err, ErrDuplicate))

	exists, err := store.EmailExists(ctx, "John@Example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.GetUserByUsername(ctx, "john_doe")
	require.NoError(t, err)
	require.NotNil(t, loaded.Profile)
	assert.Equal(t, "5551234567", loaded.Profile.Phone)
}

func TestMemoryStoreReplaceOTPInvalidatesPrevious(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute)

	first := &models.OTPCode{UserID: 1, Code: "111111", Purpose: models.PurposeLogin, ExpiresAt: expires}
	other := &models.OTPCode{UserID: 1, Code: "222222", Purpose: models.PurposePasswordReset, ExpiresAt: expires}
	require.NoError(t, store.ReplaceOTP(ctx, first))
	require.NoError(t, store.ReplaceOTP(ctx, other))

	second := &models.OTPCode{UserID: 1, Code: "333333", Purpose: models.PurposeLogin, ExpiresAt: expires}
	require.NoError(t, store.ReplaceOTP(ctx, second))

	_, err := store.FindUnusedOTP(ctx, 1, "111111", models.PurposeLogin)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := store.FindUnusedOTP(ctx, 1, "333333", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	// other purposes are untouched
	_, err = store.FindUnusedOTP(ctx, 1, "222222", models.PurposePasswordReset)
	assert.NoError(t, err)

	require.NoError(t, store.MarkOTPUsed(ctx, second.ID))
	assert.ErrorIs(t, store.MarkOTPUsed(ctx, second.ID), ErrNotFound)
}

func TestMemoryStoreDeleteExpiredOTPs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.ReplaceOTP(ctx, &models.OTPCode{UserID: 1, Code: "1", Purpose: "login", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.ReplaceOTP(ctx, &models.OTPCode{UserID: 2, Code: "2", Purpose: "login", ExpiresAt: now.Add(time.Hour)}))

	n, err := store.DeleteExpiredOTPs(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreLoginAttempts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateLoginAttempt(ctx, &models.LoginAttempt{Username: "bob", AttemptTime: now.Add(-time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, store.CreateLoginAttempt(ctx, &models.LoginAttempt{Username: "bob", AttemptTime: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.CreateLoginAttempt(ctx, &models.LoginAttempt{Username: "bob", Success: true, AttemptTime: now}))

	n, err := store.CountFailedLoginAttempts(ctx, "bob", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	recent, err := store.GetRecentLoginAttempts(ctx, "bob", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, recent, 4)
}

func TestMemoryStoreSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateUserSession(ctx, &models.UserSession{UserID: 1, SessionKey: "a", LoginTime: now, IsActive: true}))
	require.NoError(t, store.CreateUserSession(ctx, &models.UserSession{UserID: 1, SessionKey: "b", LoginTime: now.Add(-3 * time.Hour), IsActive: true}))

	n, err := store.EndUserSession(ctx, 1, "a", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.EndStaleSessions(ctx, now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, s := range store.ListUserSessions(1) {
		assert.False(t, s.IsActive)
		assert.NotNil(t, s.LogoutTime)
	}
}

func TestMemoryStoreActivityAggregates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	user := &models.User{Username: "jane", Email: "jane@example.com"}
	require.NoError(t, store.CreateUserWithProfile(ctx, user, &models.UserProfile{}))

	day := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	entries := []*models.ActivityLog{
		{UserID: &user.ID, Action: models.ActionSearch, Timestamp: day},
		{UserID: &user.ID, Action: models.ActionSearch, Timestamp: day.Add(time.Hour)},
		{Action: models.ActionView, Timestamp: day.Add(24 * time.Hour)},
		{Action: models.ActionView, Timestamp: day.AddDate(0, 0, -40)},
	}
	for _, e := range entries {
		require.NoError(t, store.CreateActivityLog(ctx, e))
	}

	since, until := day.AddDate(0, 0, -7), day.AddDate(0, 0, 2)

	byDay, err := store.CountActivityByDay(ctx, since, until)
	require.NoError(t, err)
	assert.Equal(t, []models.DayCount{{Date: "2024-03-10", Count: 2}, {Date: "2024-03-11", Count: 1}}, byDay)

	byAction, err := store.CountActivityByAction(ctx, since, until)
	require.NoError(t, err)
	assert.Equal(t, []models.KeyCount{{Key: "search", Count: 2}, {Key: "view", Count: 1}}, byAction)

	byUser, err := store.CountActivityByUser(ctx, since, until, 10)
	require.NoError(t, err)
	assert.Equal(t, []models.KeyCount{{Key: "jane", Count: 2}, {Key: AnonymousUserKey, Count: 1}}, byUser)

	byHour, err := store.CountActivityByHour(ctx, since, until)
	require.NoError(t, err)
	assert.Equal(t, []models.HourCount{{Hour: 9, Count: 2}, {Hour: 10, Count: 1}}, byHour)

	recent, err := store.GetRecentActivity(ctx, user.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, day.Add(time.Hour), recent[0].Timestamp)
}

func TestMemoryStoreSearchAggregates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for _, q := range []*models.SearchQuery{
		{QueryType: models.QueryTypeDistance, UserLocation: "40.712800,-74.006000", Radius: 10, Timestamp: now},
		{QueryType: models.QueryTypeRating, UserLocation: "40.712800,-74.006000", Radius: 5, Timestamp: now},
		{QueryType: models.QueryTypeDistance, UserLocation: "39.952600,-75.165200", Radius: 10, Timestamp: now.AddDate(0, 0, -60)},
	} {
		require.NoError(t, store.CreateSearchQuery(ctx, q))
	}

	locations, err := store.TopSearchLocations(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.KeyCount{{Key: "40.712800,-74.006000", Count: 2}}, locations)

	radii, err := store.CountSearchesByRadius(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.RadiusCount{{Radius: 5, Count: 1}, {Radius: 10, Count: 2}}, radii)

	types, err := store.CountSearchesByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.KeyCount{{Key: "distance", Count: 2}, {Key: "rating", Count: 1}}, types)

	byDay, err := store.CountSearchesByDay(ctx, now.AddDate(0, 0, -30), now)
	require.NoError(t, err)
	require.Len(t, byDay, 1)
	assert.Equal(t, int64(2), byDay[0].Count)
}
