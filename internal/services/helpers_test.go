package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

// fakeSender records every code it is asked to deliver.
type fakeSender struct {
	mu     sync.Mutex
	fail   error
	sent   []*models.OTPCode
	alerts []LoginInfo
}

func (f *fakeSender) Channel() string { return "fake" }

func (f *fakeSender) SendOTP(ctx context.Context, user *models.User, otp *models.OTPCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	copied := *otp
	f.sent = append(f.sent, &copied)
	return nil
}

func (f *fakeSender) SendLoginAlert(ctx context.Context, user *models.User, info LoginInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, info)
	return nil
}

func (f *fakeSender) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Code
}

var errSendFailed = errors.New("smtp unavailable")

// clock is a settable time source shared by the services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store    *storage.MemoryStore
	clock    *clock
	activity *ActivityLogger
	otp      *OTPService
	sender   *fakeSender
	sessions *SessionTracker
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zap.NewNop()
	store := storage.NewMemoryStore()
	clk := newClock()
	store.SetClock(clk.Now)

	activity := NewActivityLogger(store, nil, log)
	activity.now = clk.Now

	otp := NewOTPService(store, config.OTPConfig{Length: 6, Expiry: 10 * time.Minute, Channel: "email"})
	otp.now = clk.Now

	sessions := NewSessionTracker(store, time.Hour, log)
	sessions.now = clk.Now

	sender := &fakeSender{}
	auth := NewAuthService(AuthDeps{
		Store:    store,
		OTP:      otp,
		Sender:   sender,
		Alerts:   sender,
		Sessions: sessions,
		Activity: activity,
		Lockout:  config.LockoutConfig{MaxAttempts: 5, Window: time.Hour},
		Logger:   log,
	})
	auth.now = clk.Now

	return &testEnv{
		store:    store,
		clock:    clk,
		activity: activity,
		otp:      otp,
		sender:   sender,
		sessions: sessions,
		auth:     auth,
	}
}

func (e *testEnv) createUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		PasswordHash: hash,
		IsActive:     true,
	}
	require.NoError(t, e.store.CreateUserWithProfile(context.Background(), user, &models.UserProfile{}))
	return user
}

func (e *testEnv) createShop(t *testing.T, name string, lat, lng, rating float64, active bool) *models.Shop {
	t.Helper()
	shop := &models.Shop{
		Name:      name,
		Latitude:  decimal.NewFromFloat(lat),
		Longitude: decimal.NewFromFloat(lng),
		Address:   name + " address",
		Contact:   "+1-555-0101",
		Rating:    decimal.NewFromFloat(rating),
		IsActive:  active,
	}
	require.NoError(t, e.store.CreateShop(context.Background(), shop))
	return shop
}
