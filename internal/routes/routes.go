package routes

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/handlers"
	"github.com/Ananth-NQI/mechlocator-backend/internal/middleware"
	"github.com/Ananth-NQI/mechlocator-backend/internal/session"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Mechanics *handlers.MechanicHandler
	Auth      *handlers.AuthHandler
	Pages     *handlers.PagesHandler
	Admin     *handlers.AdminHandler
	Health    *handlers.HealthHandler
	Webhook   *handlers.WebhookHandler
}

// NewApp builds the fiber app with the global middleware stack.
func NewApp(cfg *config.Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "MechLocator Backend",
		// Request values are handed to background activity writes.
		Immutable: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Debug}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     joinOrigins(cfg.AllowedHosts),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: !allowsAny(cfg.AllowedHosts),
	}))
	app.Use(middleware.Metrics())
	return app
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers, sessions *session.Manager, store storage.Store, log *zap.Logger) {
	app.Get("/health", h.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Twilio posts form data without our session cookie.
	webhooks := app.Group("/webhooks")
	if !cfg.IsProduction() && cfg.Twilio.AuthToken == "" {
		log.Warn("Twilio webhook signature validation disabled")
		webhooks.Post("/twilio/status", h.Webhook.SMSStatus)
	} else {
		webhooks.Post("/twilio/status", middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, log), h.Webhook.SMSStatus)
	}

	web := app.Group("/", middleware.LoadUser(sessions, store, log))

	web.Get("/", h.Mechanics.Home)
	web.Get("/mechanics/", h.Mechanics.List)
	web.Get("/mechanic/:id/", h.Mechanics.Detail)
	web.Post("/search/", h.Mechanics.Search)
	web.Post("/api/search/", h.Mechanics.Search)
	web.Post("/api/log-call/", h.Mechanics.LogCall)

	web.Get("/register/", h.Auth.RegisterForm)
	web.Post("/register/", h.Auth.Register)

	otp := web.Group("/otp")
	otp.Get("/login/", h.Auth.LoginForm)
	otp.Post("/login/", h.Auth.Login)
	otp.Get("/verify/", h.Auth.VerifyForm)
	otp.Post("/verify/", h.Auth.Verify)
	otp.Get("/logout/", middleware.RequireLogin(), h.Auth.Logout)
	otp.Post("/logout/", middleware.RequireLogin(), h.Auth.Logout)

	web.Get("/profile/", middleware.RequireLogin(), h.Pages.Profile)
	web.Get("/about/", h.Pages.About)
	web.Get("/contact/", h.Pages.ContactForm)
	web.Post("/contact/", h.Pages.Contact)

	admin := web.Group("/admin", middleware.RequireStaff())
	admin.Get("/", h.Admin.Dashboard)
	admin.Get("/map/", h.Admin.Map)
	admin.Get("/analytics/mechanics/", h.Admin.ShopAnalytics)
	admin.Get("/analytics/activity/", h.Admin.ActivitySummary)
	admin.Get("/analytics/search/", h.Admin.SearchAnalytics)

	admin.Get("/mechanics/", h.Admin.ListShops)
	admin.Post("/mechanics/", h.Admin.CreateShop)
	admin.Get("/mechanics/export/", h.Admin.ExportShops)
	admin.Post("/mechanics/export/", h.Admin.ExportShops)
	admin.Post("/mechanics/activate/", h.Admin.ActivateShops)
	admin.Post("/mechanics/deactivate/", h.Admin.DeactivateShops)
	admin.Post("/mechanics/rating/", h.Admin.BulkRating)
	admin.Get("/mechanics/:id/", h.Admin.GetShop)
	admin.Put("/mechanics/:id/", h.Admin.UpdateShop)
	admin.Post("/mechanics/:id/", h.Admin.UpdateShop)

	admin.Get("/users/", h.Admin.ListUsers)
	admin.Post("/users/activate/", h.Admin.ActivateUsers)
	admin.Post("/users/deactivate/", h.Admin.DeactivateUsers)
	admin.Post("/users/staff/", h.Admin.GrantStaff)
	admin.Post("/users/unstaff/", h.Admin.RevokeStaff)
	admin.Get("/login-attempts/", h.Admin.LoginAttempts)
}

func allowsAny(hosts []string) bool {
	for _, h := range hosts {
		if h == "*" {
			return true
		}
	}
	return len(hosts) == 0
}

func joinOrigins(hosts []string) string {
	if allowsAny(hosts) {
		return "*"
	}
	return strings.Join(hosts, ", ")
}
