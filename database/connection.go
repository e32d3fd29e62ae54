package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

// Connect opens the postgres connection pool described by cfg.
func Connect(cfg config.DatabaseConfig, debug bool, log *zap.Logger) (*gorm.DB, error) {
	if cfg.InstanceConnectionName != "" {
		log.Info("connecting to Cloud SQL via socket", zap.String("instance", cfg.InstanceConnectionName))
	} else {
		log.Info("connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
	}

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("database connected")
	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.Shop{},
		&models.ActivityLog{},
		&models.SearchQuery{},
		&models.OTPCode{},
		&models.UserSession{},
		&models.LoginAttempt{},
	)
}
