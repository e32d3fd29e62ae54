package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/middleware"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
	"github.com/Ananth-NQI/mechlocator-backend/internal/session"
)

// AuthHandler covers registration and the password + OTP login.
type AuthHandler struct {
	registration *services.RegistrationService
	auth         *services.AuthService
	sessions     *session.Manager
	channel      string
	log          *zap.Logger
}

func NewAuthHandler(registration *services.RegistrationService, auth *services.AuthService, sessions *session.Manager, channel string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		auth:         auth,
		sessions:     sessions,
		channel:      channel,
		log:          log.Named("auth_handler"),
	}
}

// RegisterForm describes the registration fields.
func (h *AuthHandler) RegisterForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"fields": services.RegistrationFields})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegistrationInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request data")
	}

	user, err := h.registration.Register(c.UserContext(), &in, middleware.Meta(c))
	var fieldErrs services.FieldErrors
	if errors.As(err, &fieldErrs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Please correct the errors below.",
			"errors":  fieldErrs,
		})
	}
	if err != nil {
		h.log.Error("registration failed", zap.Error(err))
		return serverError(c, "Registration failed")
	}

	if _, err := h.sessions.Login(c, user.ID); err != nil {
		h.log.Error("failed to start session after registration", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Welcome to MechLocator, " + user.FirstName + "!",
		"user":     user,
		"redirect": "/",
	})
}

// LoginForm reports where the code will be sent.
func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fields":      []string{"username", "password"},
		"otp_channel": h.channel,
	})
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login checks the password and dispatches a one-time code.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}

	user, err := h.auth.BeginLogin(c.UserContext(), req.Username, req.Password, middleware.Meta(c))
	switch {
	case errors.Is(err, services.ErrAccountLocked):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Account temporarily locked. Please try again later.",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials."})
	case errors.Is(err, services.ErrOTPDispatch):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send OTP."})
	case err != nil:
		h.log.Error("login failed", zap.Error(err))
		return serverError(c, "Login failed")
	}

	if err := h.sessions.SetPending(c, user.ID); err != nil {
		h.log.Error("failed to save pending login", zap.Uint("user_id", user.ID), zap.Error(err))
		return serverError(c, "Login failed")
	}

	destination := user.Email
	if h.channel == "sms" && user.Profile != nil && user.Profile.Phone != "" {
		destination = user.Profile.Phone
	}
	return c.JSON(fiber.Map{
		"message":  "OTP sent to " + destination,
		"redirect": "/otp/verify/",
	})
}

func (h *AuthHandler) VerifyForm(c *fiber.Ctx) error {
	_, pending, err := h.sessions.PendingUserID(c)
	if err != nil {
		return serverError(c, "Session unavailable")
	}
	return c.JSON(fiber.Map{
		"fields":  []string{"otp_code"},
		"pending": pending,
	})
}

type verifyRequest struct {
	OTPCode string `json:"otp_code" form:"otp_code"`
}

// Verify accepts the one-time code and logs the user in.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}

	userID, ok, err := h.sessions.PendingUserID(c)
	if err != nil {
		h.log.Error("failed to read session", zap.Error(err))
		return serverError(c, "Session unavailable")
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "Invalid session.",
			"redirect": "/otp/login/",
		})
	}

	user, err := h.auth.VerifyLogin(c.UserContext(), userID, strings.TrimSpace(req.OTPCode))
	switch {
	case errors.Is(err, services.ErrInvalidOTP):
		return badRequest(c, "Invalid or expired OTP.")
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found."})
	case err != nil:
		h.log.Error("OTP verification failed", zap.Uint("user_id", userID), zap.Error(err))
		return serverError(c, "Verification failed")
	}

	key, err := h.sessions.Login(c, user.ID)
	if err != nil {
		h.log.Error("failed to start session", zap.Uint("user_id", user.ID), zap.Error(err))
		return serverError(c, "Login failed")
	}

	if err := h.auth.CompleteLogin(c.UserContext(), user, key, middleware.Meta(c)); err != nil {
		h.log.Error("failed to record login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"message":  "Welcome back, " + user.DisplayName() + "!",
		"user":     user,
		"redirect": "/",
	})
}

// Logout closes the session record and drops the session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	key, err := h.sessions.Key(c)
	if err != nil {
		h.log.Error("failed to read session", zap.Error(err))
	} else if err := h.auth.Logout(c.UserContext(), user.ID, key, middleware.Meta(c)); err != nil {
		h.log.Error("failed to close session", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	if err := h.sessions.Destroy(c); err != nil {
		h.log.Error("failed to destroy session", zap.Error(err))
	}
	return c.JSON(fiber.Map{
		"message":  "Logged out successfully.",
		"redirect": "/",
	})
}
