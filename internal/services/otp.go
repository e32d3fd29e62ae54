package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
	"github.com/Ananth-NQI/mechlocator-backend/internal/utils"
)

var ErrInvalidOTP = errors.New("invalid or expired OTP")

type OTPService struct {
	store  storage.Store
	length int
	expiry time.Duration
	now    func() time.Time
}

func NewOTPService(store storage.Store, cfg config.OTPConfig) *OTPService {
	return &OTPService{
		store:  store,
		length: cfg.Length,
		expiry: cfg.Expiry,
		now:    time.Now,
	}
}

// CreateOTP issues a new code for (userID, purpose). Earlier unused codes
// for the same pair stop being valid.
func (s *OTPService) CreateOTP(ctx context.Context, userID uint, purpose string) (*models.OTPCode, error) {
	if !models.ValidPurpose(purpose) {
		return nil, fmt.Errorf("unknown OTP purpose %q", purpose)
	}

	code, err := utils.GenerateSecureOTP(s.length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	now := s.now()
	otp := &models.OTPCode{
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}
	if err := s.store.ReplaceOTP(ctx, otp); err != nil {
		return nil, fmt.Errorf("store OTP: %w", err)
	}
	return otp, nil
}

// VerifyOTP consumes a code. Unknown, used and expired codes all give
// ErrInvalidOTP and leave the stored code untouched.
func (s *OTPService) VerifyOTP(ctx context.Context, userID uint, code, purpose string) (*models.OTPCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidOTP
	}

	otp, err := s.store.FindUnusedOTP(ctx, userID, code, purpose)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidOTP
	}
	if err != nil {
		return nil, fmt.Errorf("find OTP: %w", err)
	}
	if !otp.IsValid(s.now()) {
		return nil, ErrInvalidOTP
	}

	if err := s.store.MarkOTPUsed(ctx, otp.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Consumed by a concurrent verification.
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("mark OTP used: %w", err)
	}
	otp.IsUsed = true
	return otp, nil
}

// PurgeExpired deletes codes that expired more than grace ago.
func (s *OTPService) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.store.DeleteExpiredOTPs(ctx, s.now().Add(-grace))
}
