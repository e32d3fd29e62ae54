package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/database"
	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/handlers"
	"github.com/Ananth-NQI/mechlocator-backend/internal/jobs"
	"github.com/Ananth-NQI/mechlocator-backend/internal/logger"
	"github.com/Ananth-NQI/mechlocator-backend/internal/routes"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
	"github.com/Ananth-NQI/mechlocator-backend/internal/session"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so fall back to a plain one.
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.Init(cfg.Environment, cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Store
	if cfg.UseMemoryStore {
		log.Warn("using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		db, err := database.Connect(cfg.Database, cfg.Debug, log)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		log.Info("running database migrations")
		if err := database.Migrate(db); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
		store = storage.NewDatabaseStore(db)
	}

	if cfg.SeedSampleData {
		if err := database.Seed(ctx, store, rand.New(rand.NewSource(time.Now().UnixNano())), log); err != nil {
			log.Fatal("failed to seed sample data", zap.Error(err))
		}
	}

	// Sessions live in redis when configured so every instance shares them.
	var sessionStorage fiber.Storage
	var redisPinger handlers.Pinger
	if cfg.Redis.URL != "" {
		rs, err := session.NewRedisStorage(cfg.Redis.URL)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		sessionStorage, redisPinger = rs, rs
		log.Info("using redis session storage")
	} else {
		log.Warn("REDIS_URL not set, sessions are kept in memory")
	}
	sessions := session.NewManager(cfg.Session, sessionStorage)

	var events services.EventPublisher
	if cfg.Kafka.Broker != "" {
		events = services.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.ActivityTopic, log)
		log.Info("publishing activity events", zap.String("topic", cfg.Kafka.ActivityTopic))
	}
	activity := services.NewActivityLogger(store, events, log)

	sender, alerts := buildSenders(cfg, log)

	otps := services.NewOTPService(store, cfg.OTP)
	tracker := services.NewSessionTracker(store, cfg.Session.TTL, log)
	auth := services.NewAuthService(services.AuthDeps{
		Store:    store,
		OTP:      otps,
		Sender:   sender,
		Alerts:   alerts,
		Sessions: tracker,
		Activity: activity,
		Lockout:  cfg.Lockout,
		Logger:   log,
	})

	h := routes.Handlers{
		Mechanics: handlers.NewMechanicHandler(
			services.NewMechanicService(store),
			services.NewSearchService(store, activity),
			activity, log,
		),
		Auth: handlers.NewAuthHandler(
			services.NewRegistrationService(store, activity, log),
			auth, sessions, sender.Channel(), log,
		),
		Pages: handlers.NewPagesHandler(store, services.NewContactService(activity), activity, log),
		Admin: handlers.NewAdminHandler(
			services.NewAdminService(store, activity, log),
			services.NewAnalyticsService(store, cfg.GoogleMapsAPIKey),
			log,
		),
		Health:  handlers.NewHealthHandler(version, store, redisPinger),
		Webhook: handlers.NewWebhookHandler(log),
	}

	cleanup := jobs.NewCleanupJob(otps, tracker, cfg.CleanupInterval, log)
	cleanup.Start(ctx)

	app := routes.NewApp(cfg, log)
	routes.SetupRoutes(app, cfg, h, sessions, store, log)

	go func() {
		<-ctx.Done()
		log.Info("gracefully shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("MechLocator backend starting",
		zap.String("version", version),
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("memory_store", cfg.UseMemoryStore),
		zap.String("otp_channel", sender.Channel()),
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("server stopped", zap.Error(err))
	}

	cleanup.Stop()
	auth.Wait()
	if err := activity.Close(); err != nil {
		log.Error("failed to close activity publisher", zap.Error(err))
	}
	if sessionStorage != nil {
		if err := sessionStorage.Close(); err != nil {
			log.Error("failed to close session storage", zap.Error(err))
		}
	}
	log.Info("shutdown complete")
}

// buildSenders picks the OTP channel and the login alert channel.
// Outside production a missing mail or SMS setup falls back to writing
// codes to the log.
func buildSenders(cfg *config.Config, log *zap.Logger) (services.OTPSender, services.LoginAlertSender) {
	var email interface {
		services.OTPSender
		services.LoginAlertSender
	}
	switch {
	case cfg.Email.Configured():
		email = services.NewMailer(cfg.Email, log)
	case !cfg.IsProduction():
		log.Warn("email is not configured, OTP codes will be logged")
		email = services.NewLogSender(log)
	default:
		log.Error("email is not configured, OTP delivery will fail")
		email = services.NewMailer(cfg.Email, log)
	}

	var sms services.OTPSender
	if cfg.OTP.Channel == "sms" {
		s, err := services.NewSMSService(cfg.Twilio, log)
		if err != nil {
			log.Warn("SMS OTP unavailable, using email", zap.Error(err))
		} else {
			sms = s
		}
	}

	return services.NewOTPDispatcher(email, sms, log), email
}
