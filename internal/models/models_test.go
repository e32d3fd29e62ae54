package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampRating(t *testing.T) {
	assert.True(t, ClampRating(decimal.NewFromFloat(-1)).Equal(decimal.Zero))
	assert.True(t, ClampRating(decimal.NewFromFloat(7.5)).Equal(decimal.NewFromInt(5)))
	assert.True(t, ClampRating(decimal.NewFromFloat(4.567)).Equal(decimal.RequireFromString("4.57")))
}

func TestShopNormalize(t *testing.T) {
	s := &Shop{
		Name:      "  ABC Auto Repair ",
		Latitude:  decimal.RequireFromString("40.712800"),
		Longitude: decimal.RequireFromString("-74.006000"),
		Rating:    decimal.NewFromFloat(6),
	}
	require.NoError(t, s.Normalize())
	assert.Equal(t, "ABC Auto Repair", s.Name)
	assert.True(t, s.Rating.Equal(MaxRating))

	s.Latitude = decimal.NewFromInt(95)
	assert.Error(t, s.Normalize())

	assert.Error(t, (&Shop{}).Normalize())
}

func TestOTPValidity(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	otp := &OTPCode{ExpiresAt: created.Add(10 * time.Minute)}

	assert.True(t, otp.IsValid(created))
	assert.True(t, otp.IsValid(created.Add(9*time.Minute+59*time.Second)))
	assert.False(t, otp.IsValid(created.Add(10*time.Minute)))
	assert.False(t, otp.IsValid(created.Add(11*time.Minute)))

	otp.IsUsed = true
	assert.False(t, otp.IsValid(created))
}

func TestValidPurpose(t *testing.T) {
	assert.True(t, ValidPurpose(PurposeLogin))
	assert.True(t, ValidPurpose(PurposePasswordReset))
	assert.False(t, ValidPurpose("signup"))
}

func TestUserSessionEnd(t *testing.T) {
	s := &UserSession{IsActive: true}
	at := time.Now()
	s.End(at)
	assert.False(t, s.IsActive)
	require.NotNil(t, s.LogoutTime)
	assert.Equal(t, at, *s.LogoutTime)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "John", (&User{Username: "john_doe", FirstName: "John"}).DisplayName())
	assert.Equal(t, "john_doe", (&User{Username: "john_doe"}).DisplayName())
}
