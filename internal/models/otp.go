package models

import "time"

// OTP purposes.
const (
	PurposeLogin             = "login"
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

// ValidPurpose reports whether p is a known OTP purpose.
func ValidPurpose(p string) bool {
	switch p {
	case PurposeLogin, PurposePasswordReset, PurposeEmailVerification:
		return true
	}
	return false
}

// OTPCode is a one-time code. At most one unused code exists per
// (UserID, Purpose); issuing a new one marks the previous ones used.
type OTPCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index:idx_otp_user_purpose"`
	Code      string    `json:"-" gorm:"size:10;not null"`
	Purpose   string    `json:"purpose" gorm:"size:20;not null;index:idx_otp_user_purpose"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	IsUsed    bool      `json:"is_used" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (o *OTPCode) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// IsValid is true iff the code is unused and now is before ExpiresAt.
func (o *OTPCode) IsValid(now time.Time) bool {
	return !o.IsUsed && !o.IsExpired(now)
}
