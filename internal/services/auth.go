package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/metrics"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrOTPDispatch        = errors.New("failed to send OTP")
	ErrUserNotFound       = errors.New("user not found")
)

// Login attempt failure reasons.
const (
	ReasonInvalidCredentials = "Invalid credentials"
	ReasonOTPSendFailed      = "OTP send failed"
	ReasonAccountLocked      = "Account locked"
)

// AuthService runs the two-step login: password first, then a one-time
// code delivered out of band.
type AuthService struct {
	store    storage.Store
	otp      *OTPService
	sender   OTPSender
	alerts   LoginAlertSender
	sessions *SessionTracker
	activity *ActivityLogger
	lockout  config.LockoutConfig
	log      *zap.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
	alertWG   sync.WaitGroup
}

type AuthDeps struct {
	Store    storage.Store
	OTP      *OTPService
	Sender   OTPSender
	Alerts   LoginAlertSender // optional
	Sessions *SessionTracker
	Activity *ActivityLogger
	Lockout  config.LockoutConfig
	Logger   *zap.Logger
}

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		store:    deps.Store,
		otp:      deps.OTP,
		sender:   deps.Sender,
		alerts:   deps.Alerts,
		sessions: deps.Sessions,
		activity: deps.Activity,
		lockout:  deps.Lockout,
		log:      deps.Logger.Named("auth"),
		now:      time.Now,
	}
}

// IsAccountLocked reports whether the username has reached the failed
// attempt limit inside the lockout window.
func (a *AuthService) IsAccountLocked(ctx context.Context, username string) (bool, error) {
	since := a.now().Add(-a.lockout.Window)
	n, err := a.store.CountFailedLoginAttempts(ctx, username, since)
	if err != nil {
		return false, fmt.Errorf("count failed attempts: %w", err)
	}
	return n >= int64(a.lockout.MaxAttempts), nil
}

// BeginLogin checks the password and sends a login code. On success the
// caller holds the returned user's id as the pending login.
func (a *AuthService) BeginLogin(ctx context.Context, username, password string, meta RequestMeta) (*models.User, error) {
	username = strings.TrimSpace(username)

	locked, err := a.IsAccountLocked(ctx, username)
	if err != nil {
		return nil, err
	}
	if locked {
		a.trackAttempt(ctx, username, nil, false, ReasonAccountLocked, meta)
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		a.log.Warn("login blocked, account locked", zap.String("username", username))
		return nil, ErrAccountLocked
	}

	user, err := a.authenticate(ctx, username, password)
	if err != nil {
		var userID *uint
		if user != nil {
			userID = &user.ID
		}
		if errors.Is(err, ErrInvalidCredentials) {
			a.trackAttempt(ctx, username, userID, false, ReasonInvalidCredentials, meta)
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		}
		return nil, err
	}

	otp, err := a.otp.CreateOTP(ctx, user.ID, models.PurposeLogin)
	if err != nil {
		return nil, err
	}

	if err := a.sender.SendOTP(ctx, user, otp); err != nil {
		a.log.Error("failed to send login OTP", zap.Uint("user_id", user.ID), zap.Error(err))
		a.trackAttempt(ctx, username, &user.ID, false, ReasonOTPSendFailed, meta)
		metrics.LoginAttemptsTotal.WithLabelValues("otp_failed").Inc()
		return nil, ErrOTPDispatch
	}

	a.trackAttempt(ctx, username, &user.ID, true, "", meta)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// authenticate returns ErrInvalidCredentials for unknown users, inactive
// users and wrong passwords alike. The returned user is set whenever the
// username exists.
func (a *AuthService) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		// Spend the same bcrypt time as a real check.
		CheckPassword(a.fakeHash(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) || !user.IsActive {
		return user, ErrInvalidCredentials
	}
	return user, nil
}

func (a *AuthService) fakeHash() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = HashPassword("not-a-real-password")
	})
	return a.dummyHash
}

func (a *AuthService) trackAttempt(ctx context.Context, username string, userID *uint, success bool, reason string, meta RequestMeta) {
	attempt := &models.LoginAttempt{
		UserID:        userID,
		Username:      username,
		IPAddress:     meta.IP,
		UserAgent:     meta.UserAgent,
		AttemptTime:   a.now(),
		Success:       success,
		FailureReason: reason,
	}
	if err := a.store.CreateLoginAttempt(ctx, attempt); err != nil {
		a.log.Error("failed to track login attempt", zap.String("username", username), zap.Error(err))
	}
}

// VerifyLogin checks the code for a pending login. A rejected code leaves
// the pending login in place.
func (a *AuthService) VerifyLogin(ctx context.Context, userID uint, code string) (*models.User, error) {
	user, err := a.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if _, err := a.otp.VerifyOTP(ctx, user.ID, code, models.PurposeLogin); err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			metrics.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}
	metrics.OTPVerificationsTotal.WithLabelValues("accepted").Inc()
	return user, nil
}

// CompleteLogin records a verified login under its new session key:
// session row, last login time, activity entry and the alert email.
func (a *AuthService) CompleteLogin(ctx context.Context, user *models.User, sessionKey string, meta RequestMeta) error {
	if _, err := a.sessions.Start(ctx, user.ID, sessionKey, meta); err != nil {
		return err
	}

	now := a.now()
	if err := a.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		a.log.Error("failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	meta.UserID = &user.ID
	if a.activity != nil {
		a.activity.Log(ctx, meta, models.ActionLogin, fmt.Sprintf("User logged in with OTP: %s", user.Username))
	}

	if a.alerts != nil {
		info := LoginInfo{IP: meta.IP, UserAgent: meta.UserAgent, At: now}
		a.alertWG.Add(1)
		go func() {
			defer a.alertWG.Done()
			alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := a.alerts.SendLoginAlert(alertCtx, user, info); err != nil {
				a.log.Warn("failed to send login alert", zap.Uint("user_id", user.ID), zap.Error(err))
			}
		}()
	}

	a.log.Info("user logged in", zap.Uint("user_id", user.ID))
	return nil
}

// Logout closes the session row for (userID, sessionKey).
func (a *AuthService) Logout(ctx context.Context, userID uint, sessionKey string, meta RequestMeta) error {
	if _, err := a.sessions.End(ctx, userID, sessionKey); err != nil {
		return err
	}
	meta.UserID = &userID
	if a.activity != nil {
		a.activity.Log(ctx, meta, models.ActionLogout, "User logged out")
	}
	return nil
}

// Wait blocks until pending login alerts have been sent.
func (a *AuthService) Wait() {
	a.alertWG.Wait()
}
