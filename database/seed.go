package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// SamplePassword is the password of every seeded user.
const SamplePassword = "password123"

type sampleUser struct {
	username, first, last, email string
}

var sampleUsers = []sampleUser{
	{"john_doe", "John", "Doe", "john@example.com"},
	{"jane_smith", "Jane", "Smith", "jane@example.com"},
	{"mike_wilson", "Mike", "Wilson", "mike@example.com"},
	{"sarah_jones", "Sarah", "Jones", "sarah@example.com"},
	{"david_brown", "David", "Brown", "david@example.com"},
}

const weekdayHours = "Monday-Friday: 8:00 AM - 6:00 PM\nSaturday: 9:00 AM - 4:00 PM\nSunday: Closed"

type sampleShop struct {
	name, address, hours string
	rating               float64
}

var sampleShops = []sampleShop{
	{"ABC Auto Repair", "123 Main Street, Downtown, City, State 12345", weekdayHours, 4.8},
	{"City Auto Service", "456 Oak Avenue, Midtown, City, State 12345", "Monday-Friday: 7:30 AM - 7:00 PM\nSaturday: 8:00 AM - 5:00 PM\nSunday: 10:00 AM - 2:00 PM", 4.6},
	{"Express Car Care", "789 Pine Street, Uptown, City, State 12345", "Monday-Saturday: 8:00 AM - 6:00 PM\nSunday: Closed", 4.4},
	{"Pro Auto Solutions", "321 Elm Street, Westside, City, State 12345", "Monday-Friday: 8:00 AM - 6:00 PM\nSaturday: 9:00 AM - 3:00 PM\nSunday: Closed", 4.9},
	{"Quick Fix Garage", "654 Maple Drive, Eastside, City, State 12345", "Monday-Friday: 7:00 AM - 8:00 PM\nSaturday: 8:00 AM - 6:00 PM\nSunday: 9:00 AM - 4:00 PM", 4.3},
	{"Reliable Auto Repair", "987 Cedar Lane, Northside, City, State 12345", weekdayHours, 4.7},
	{"Speedy Auto Service", "147 Birch Road, Southside, City, State 12345", "Monday-Saturday: 7:00 AM - 7:00 PM\nSunday: 10:00 AM - 3:00 PM", 4.5},
	{"Trusted Car Care", "258 Willow Way, Central, City, State 12345", weekdayHours, 4.8},
	{"VIP Auto Repair", "369 Spruce Street, Heights, City, State 12345", "Monday-Friday: 8:00 AM - 7:00 PM\nSaturday: 9:00 AM - 5:00 PM\nSunday: Closed", 4.6},
	{"24/7 Auto Service", "741 Poplar Avenue, Valley, City, State 12345", "24/7 Emergency Service Available", 4.2},
	{"Classic Car Specialists", "852 Ash Street, Historic, City, State 12345", "Monday-Friday: 9:00 AM - 5:00 PM\nSaturday: 10:00 AM - 3:00 PM\nSunday: Closed", 4.9},
	{"Hybrid Auto Experts", "963 Chestnut Drive, Modern, City, State 12345", weekdayHours, 4.7},
	{"Luxury Auto Service", "159 Magnolia Lane, Upscale, City, State 12345", "Monday-Friday: 9:00 AM - 6:00 PM\nSaturday: 10:00 AM - 4:00 PM\nSunday: Closed", 4.8},
	{"Budget Auto Repair", "357 Sycamore Road, Budget, City, State 12345", "Monday-Friday: 7:00 AM - 6:00 PM\nSaturday: 8:00 AM - 4:00 PM\nSunday: Closed", 4.1},
	{"Family Auto Care", "486 Acacia Street, Family, City, State 12345", weekdayHours, 4.6},
	{"Mobile Auto Service", "597 Juniper Way, Mobile, City, State 12345", "Mobile Service - Call for Appointment", 4.4},
	{"Truck & SUV Specialists", "618 Cypress Drive, Industrial, City, State 12345", "Monday-Friday: 7:00 AM - 7:00 PM\nSaturday: 8:00 AM - 5:00 PM\nSunday: Closed", 4.5},
	{"European Auto Service", "739 Redwood Lane, European, City, State 12345", weekdayHours, 4.8},
	{"Asian Auto Repair", "864 Sequoia Street, Asian, City, State 12345", weekdayHours, 4.6},
	{"Performance Auto Tuning", "975 Fir Avenue, Performance, City, State 12345", "Monday-Friday: 9:00 AM - 6:00 PM\nSaturday: 10:00 AM - 4:00 PM\nSunday: Closed", 4.7},
}

// Shops are scattered within 0.1 degrees of this point (New York City).
const (
	seedLat = 40.7128
	seedLng = -74.0060
)

// Seed creates the sample users and shops that do not exist yet.
// Existing rows are left untouched, so it is safe to run on every start.
func Seed(ctx context.Context, store storage.Store, rng *rand.Rand, log *zap.Logger) error {
	for i, u := range sampleUsers {
		_, err := store.GetUserByUsername(ctx, u.username)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("look up %s: %w", u.username, err)
		}

		hash, err := services.HashPassword(SamplePassword)
		if err != nil {
			return err
		}
		user := &models.User{
			Username:     u.username,
			Email:        u.email,
			FirstName:    u.first,
			LastName:     u.last,
			PasswordHash: hash,
			IsActive:     true,
		}
		profile := &models.UserProfile{
			Phone:   fmt.Sprintf("+1-555-%04d", 1000+i),
			Address: fmt.Sprintf("%d Main Street, City, State %d", 100+i, 10000+i),
		}
		if err := store.CreateUserWithProfile(ctx, user, profile); err != nil {
			return fmt.Errorf("create user %s: %w", u.username, err)
		}
		log.Info("created sample user", zap.String("username", u.username))
	}

	existing, err := store.FindShops(ctx, storage.ShopFilter{})
	if err != nil {
		return fmt.Errorf("list shops: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, shop := range existing {
		names[shop.Name] = true
	}

	created := 0
	for i, s := range sampleShops {
		if names[s.name] {
			continue
		}
		rating := s.rating + rng.Float64()*0.4 - 0.2
		shop := &models.Shop{
			Name:         s.name,
			Latitude:     decimal.NewFromFloat(seedLat + rng.Float64()*0.2 - 0.1).Round(6),
			Longitude:    decimal.NewFromFloat(seedLng + rng.Float64()*0.2 - 0.1).Round(6),
			Address:      s.address,
			Contact:      fmt.Sprintf("+1-555-%04d", 101+i),
			Rating:       models.ClampRating(decimal.NewFromFloat(rating).Round(1)),
			WorkingHours: s.hours,
			IsActive:     true,
		}
		if err := store.CreateShop(ctx, shop); err != nil {
			return fmt.Errorf("create shop %s: %w", s.name, err)
		}
		created++
	}
	log.Info("sample data ready", zap.Int("users", len(sampleUsers)), zap.Int("mechanics_created", created))
	return nil
}
