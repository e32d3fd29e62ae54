package models

import (
	"strings"
	"time"
)

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"size:254;uniqueIndex;not null"`
	FirstName    string     `json:"first_name" gorm:"size:30"`
	LastName     string     `json:"last_name" gorm:"size:30"`
	PasswordHash string     `json:"-" gorm:"not null"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	IsStaff      bool       `json:"is_staff" gorm:"not null"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"date_joined"`
	UpdatedAt    time.Time  `json:"-"`

	Profile *UserProfile `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

// DisplayName prefers the first name and falls back to the username.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	return u.Username
}

// UserProfile carries the contact details collected at registration.
type UserProfile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Phone     string    `json:"phone" gorm:"size:20"`
	Address   string    `json:"address" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
