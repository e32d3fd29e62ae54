package models

import "time"

// UserSession records one authenticated browser session.
type UserSession struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"user_id" gorm:"not null;index"`
	SessionKey string     `json:"-" gorm:"size:64;not null;index"`
	IPAddress  string     `json:"ip_address" gorm:"size:45"`
	UserAgent  string     `json:"user_agent" gorm:"type:text"`
	LoginTime  time.Time  `json:"login_time" gorm:"not null;index"`
	LogoutTime *time.Time `json:"logout_time"`
	IsActive   bool       `json:"is_active" gorm:"not null;index"`
}

// End closes the session at the given time.
func (s *UserSession) End(at time.Time) {
	s.LogoutTime = &at
	s.IsActive = false
}

// LoginAttempt is an append-only record of a credential check.
type LoginAttempt struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        *uint     `json:"user_id" gorm:"index"`
	Username      string    `json:"username" gorm:"size:150;not null;index:idx_attempt_username_time"`
	IPAddress     string    `json:"ip_address" gorm:"size:45"`
	UserAgent     string    `json:"user_agent" gorm:"type:text"`
	AttemptTime   time.Time `json:"attempt_time" gorm:"not null;index:idx_attempt_username_time"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason" gorm:"size:100"`
}
