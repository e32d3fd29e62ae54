package models

import "time"

// Activity actions.
const (
	ActionSearch      = "search"
	ActionView        = "view"
	ActionCall        = "call"
	ActionFilter      = "filter"
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionAdminAction = "admin_action"
	ActionRegister    = "register"
	ActionContact     = "contact"
)

// ActivityLog is an append-only audit row. UserID is nil for anonymous
// visitors.
type ActivityLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    *uint     `json:"user_id" gorm:"index"`
	Action    string    `json:"action" gorm:"size:20;not null;index"`
	Details   string    `json:"details" gorm:"type:text"`
	IPAddress string    `json:"ip_address" gorm:"size:45"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

// SearchQuery records one location search for analytics.
type SearchQuery struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	QueryType    string    `json:"query_type" gorm:"size:50;not null;index"`
	UserLocation string    `json:"user_location" gorm:"size:100;not null;index"`
	Radius       int       `json:"radius" gorm:"not null"`
	ResultsCount int       `json:"results_count" gorm:"not null"`
	UserID       *uint     `json:"user_id" gorm:"index"`
	Timestamp    time.Time `json:"timestamp" gorm:"not null;index"`
}

// Search query types.
const (
	QueryTypeDistance = "distance"
	QueryTypeRating   = "rating"
)
