package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
)

var (
	MinRating = decimal.Zero
	MaxRating = decimal.NewFromInt(5)
)

// Shop is a mechanic shop listed in the directory. Shops are hidden with
// IsActive rather than deleted.
type Shop struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"size:200;not null;index"`
	Latitude     decimal.Decimal `json:"latitude" gorm:"type:decimal(9,6);not null"`
	Longitude    decimal.Decimal `json:"longitude" gorm:"type:decimal(9,6);not null"`
	Address      string          `json:"address" gorm:"type:text;not null"`
	Contact      string          `json:"contact" gorm:"size:20"`
	Rating       decimal.Decimal `json:"rating" gorm:"type:decimal(3,2);not null;default:0;index"`
	WorkingHours string          `json:"working_hours" gorm:"type:text"`
	ImageURL     string          `json:"image_url,omitempty"`
	IsActive     bool            `json:"is_active" gorm:"not null;index"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Distance in km from the caller, set by search only.
	Distance *float64 `json:"distance,omitempty" gorm:"-"`
}

func (Shop) TableName() string {
	return "mechanics"
}

// BeforeSave normalizes the record before it reaches the database.
func (s *Shop) BeforeSave(tx *gorm.DB) error {
	return s.Normalize()
}

// Normalize trims text fields, clamps the rating to [0,5] and rejects
// missing or out-of-range coordinates.
func (s *Shop) Normalize() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Address = strings.TrimSpace(s.Address)
	s.Contact = strings.TrimSpace(s.Contact)
	if s.Name == "" {
		return fmt.Errorf("shop name is required")
	}
	if !s.Point().Valid() {
		return fmt.Errorf("shop coordinates out of range: %s", s.Point())
	}
	s.Rating = ClampRating(s.Rating)
	return nil
}

// Point returns the shop coordinate.
func (s *Shop) Point() geo.Point {
	return geo.Point{Lat: s.Latitude.InexactFloat64(), Lng: s.Longitude.InexactFloat64()}
}

// ClampRating bounds r to [0,5] and rounds it to two decimals.
func ClampRating(r decimal.Decimal) decimal.Decimal {
	if r.LessThan(MinRating) {
		r = MinRating
	}
	if r.GreaterThan(MaxRating) {
		r = MaxRating
	}
	return r.Round(2)
}
