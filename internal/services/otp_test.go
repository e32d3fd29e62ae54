package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

func TestCreateOTPInvalidatesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.otp.CreateOTP(ctx, 1, models.PurposeLogin)
	require.NoError(t, err)
	assert.Len(t, first.Code, 6)
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), first.ExpiresAt)

	reset, err := env.otp.CreateOTP(ctx, 1, models.PurposePasswordReset)
	require.NoError(t, err)

	second, err := env.otp.CreateOTP(ctx, 1, models.PurposeLogin)
	require.NoError(t, err)

	stored, err := env.store.GetOTP(first.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsUsed)

	stored, err = env.store.GetOTP(reset.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed, "other purposes are untouched")

	stored, err = env.store.GetOTP(second.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed)
}

func TestCreateOTPUnknownPurpose(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.otp.CreateOTP(context.Background(), 1, "signup")
	assert.Error(t, err)
}

func TestVerifyOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otp, err := env.otp.CreateOTP(ctx, 7, models.PurposeLogin)
	require.NoError(t, err)

	_, err = env.otp.VerifyOTP(ctx, 7, "000000x", models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	_, err = env.otp.VerifyOTP(ctx, 8, otp.Code, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	verified, err := env.otp.VerifyOTP(ctx, 7, " "+otp.Code+" ", models.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, verified.IsUsed)

	_, err = env.otp.VerifyOTP(ctx, 7, otp.Code, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidOTP, "codes are single use")
}

func TestVerifyExpiredOTPStaysUnused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otp, err := env.otp.CreateOTP(ctx, 1, models.PurposeLogin)
	require.NoError(t, err)

	env.clock.Advance(11 * time.Minute)
	_, err = env.otp.VerifyOTP(ctx, 1, otp.Code, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	stored, err := env.store.GetOTP(otp.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed)
}

func TestVerifyOTPAtExactExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otp, err := env.otp.CreateOTP(ctx, 1, models.PurposeLogin)
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	_, err = env.otp.VerifyOTP(ctx, 1, otp.Code, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestPurgeExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old, err := env.otp.CreateOTP(ctx, 1, models.PurposeLogin)
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)
	fresh, err := env.otp.CreateOTP(ctx, 2, models.PurposeLogin)
	require.NoError(t, err)

	n, err := env.otp.PurgeExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.store.GetOTP(old.ID)
	assert.Error(t, err)
	_, err = env.store.GetOTP(fresh.ID)
	assert.NoError(t, err)
}
