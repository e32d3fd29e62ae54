package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/middleware"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// PagesHandler serves the profile, about and contact pages.
type PagesHandler struct {
	store    storage.Store
	contact  *services.ContactService
	activity *services.ActivityLogger
	log      *zap.Logger
}

func NewPagesHandler(store storage.Store, contact *services.ContactService, activity *services.ActivityLogger, log *zap.Logger) *PagesHandler {
	return &PagesHandler{store: store, contact: contact, activity: activity, log: log.Named("pages")}
}

// Profile shows the logged-in user and their 10 latest actions.
func (h *PagesHandler) Profile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	recent, err := h.store.GetRecentActivity(c.UserContext(), user.ID, 10)
	if err != nil {
		h.log.Error("failed to load recent activity", zap.Uint("user_id", user.ID), zap.Error(err))
		return serverError(c, "Failed to load profile")
	}

	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionView, "User profile visited")
	return c.JSON(fiber.Map{
		"user":            user,
		"recent_activity": recent,
	})
}

func (h *PagesHandler) About(c *fiber.Ctx) error {
	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionView, "About page visited")
	return c.JSON(fiber.Map{
		"name":        "MechLocator",
		"description": "Find trusted auto repair shops near you, compare ratings and call them directly.",
	})
}

func (h *PagesHandler) ContactForm(c *fiber.Ctx) error {
	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionView, "Contact page visited")
	return c.JSON(fiber.Map{
		"fields": []string{"firstName", "lastName", "email", "phone", "subject", "message", "newsletter"},
	})
}

func (h *PagesHandler) Contact(c *fiber.Ctx) error {
	var in services.ContactInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request data")
	}

	err := h.contact.Submit(c.UserContext(), &in, middleware.Meta(c))
	switch {
	case errors.Is(err, services.ErrContactIncomplete):
		return badRequest(c, services.ContactIncompleteMessage)
	case errors.Is(err, services.ErrContactEmail):
		return badRequest(c, services.ContactEmailMessage)
	case err != nil:
		h.log.Error("contact form failed", zap.Error(err))
		return serverError(c, "Failed to submit the form")
	}

	return c.JSON(fiber.Map{"message": services.ContactThanks})
}
