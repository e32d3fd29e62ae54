package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
	"github.com/Ananth-NQI/mechlocator-backend/internal/session"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
	"github.com/Ananth-NQI/mechlocator-backend/internal/utils"
)

const userLocalsKey = "user"

// LoadUser puts the logged-in user, if any, into the request locals.
// Unknown or deactivated users are treated as anonymous.
func LoadUser(sessions *session.Manager, store storage.Store, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, err := sessions.UserID(c)
		if err != nil {
			log.Warn("failed to read session", zap.Error(err))
			return c.Next()
		}
		if !ok {
			return c.Next()
		}

		user, err := store.GetUser(c.UserContext(), userID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			log.Error("failed to load session user", zap.Uint("user_id", userID), zap.Error(err))
		case user.IsActive:
			c.Locals(userLocalsKey, user)
		}
		return c.Next()
	}
}

// CurrentUser returns the user set by LoadUser, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}

// RequireLogin rejects anonymous requests.
func RequireLogin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":     "Authentication required",
				"login_url": "/otp/login/",
			})
		}
		return c.Next()
	}
}

// RequireStaff allows only staff users through.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":     "Authentication required",
				"login_url": "/otp/login/",
			})
		}
		if !user.IsStaff {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Staff access required",
			})
		}
		return c.Next()
	}
}

// Meta describes the caller for audit records.
func Meta(c *fiber.Ctx) services.RequestMeta {
	meta := services.RequestMeta{
		IP:        utils.ClientIP(c.Get(fiber.HeaderXForwardedFor), c.IP()),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if user := CurrentUser(c); user != nil {
		id := user.ID
		meta.UserID = &id
	}
	return meta
}
