package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/middleware"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
)

// AdminHandler handles staff operations and reports
type AdminHandler struct {
	admin     *services.AdminService
	analytics *services.AnalyticsService
	log       *zap.Logger
}

func NewAdminHandler(admin *services.AdminService, analytics *services.AnalyticsService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, analytics: analytics, log: log.Named("admin_handler")}
}

func days(c *fiber.Ctx, def int) int {
	n, err := strconv.Atoi(c.Query("days"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func shopID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (h *AdminHandler) fail(c *fiber.Ctx, action string, err error) error {
	h.log.Error(action+" failed", zap.Error(err))
	return serverError(c, "Failed to "+action)
}

// Dashboard returns shop totals, rating distribution, recent shops and growth.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	dash, err := h.analytics.Dashboard(c.UserContext())
	if err != nil {
		return h.fail(c, "load dashboard", err)
	}
	return c.JSON(dash)
}

func (h *AdminHandler) Map(c *fiber.Ctx) error {
	view, err := h.analytics.MapView(c.UserContext())
	if err != nil {
		return h.fail(c, "load map", err)
	}
	return c.JSON(view)
}

func (h *AdminHandler) ShopAnalytics(c *fiber.Ctx) error {
	report, err := h.analytics.ShopAnalytics(c.UserContext(), days(c, services.DefaultShopAnalyticsDays))
	if err != nil {
		return h.fail(c, "load shop analytics", err)
	}
	return c.JSON(report)
}

func (h *AdminHandler) ActivitySummary(c *fiber.Ctx) error {
	report, err := h.analytics.ActivitySummary(c.UserContext(), days(c, services.DefaultActivitySummaryDays))
	if err != nil {
		return h.fail(c, "load activity summary", err)
	}
	return c.JSON(report)
}

func (h *AdminHandler) SearchAnalytics(c *fiber.Ctx) error {
	report, err := h.analytics.SearchAnalytics(c.UserContext(), days(c, services.DefaultSearchAnalyticsDays))
	if err != nil {
		return h.fail(c, "load search analytics", err)
	}
	return c.JSON(report)
}

// ListShops includes inactive shops.
func (h *AdminHandler) ListShops(c *fiber.Ctx) error {
	page, err := h.admin.ListShops(c.UserContext(), c.Query("search"), c.Query("page"))
	if err != nil {
		return h.fail(c, "list mechanics", err)
	}
	return c.JSON(page)
}

func (h *AdminHandler) GetShop(c *fiber.Ctx) error {
	id, ok := shopID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mechanic not found"})
	}
	shop, err := h.admin.GetShop(c.UserContext(), id)
	if errors.Is(err, services.ErrShopNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mechanic not found"})
	}
	if err != nil {
		return h.fail(c, "load mechanic", err)
	}
	return c.JSON(shop)
}

func (h *AdminHandler) CreateShop(c *fiber.Ctx) error {
	var in services.ShopInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request data")
	}

	shop, err := h.admin.CreateShop(c.UserContext(), &in, middleware.Meta(c))
	if handled, resp := fieldErrorResponse(c, err); handled {
		return resp
	}
	if err != nil {
		return h.fail(c, "create mechanic", err)
	}
	return c.Status(fiber.StatusCreated).JSON(shop)
}

func (h *AdminHandler) UpdateShop(c *fiber.Ctx) error {
	id, ok := shopID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mechanic not found"})
	}
	var in services.ShopInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request data")
	}

	shop, err := h.admin.UpdateShop(c.UserContext(), id, &in, middleware.Meta(c))
	if handled, resp := fieldErrorResponse(c, err); handled {
		return resp
	}
	switch {
	case errors.Is(err, services.ErrShopNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mechanic not found"})
	case err != nil:
		return h.fail(c, "update mechanic", err)
	}
	return c.JSON(shop)
}

// fieldErrorResponse writes a 400 when err carries field validation errors.
func fieldErrorResponse(c *fiber.Ctx, err error) (bool, error) {
	var fieldErrs services.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return false, nil
	}
	return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": fieldErrs})
}

func parseIDs(c *fiber.Ctx) ([]uint, bool) {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return nil, false
	}
	return req.IDs, true
}

func (h *AdminHandler) bulk(c *fiber.Ctx, action string, run func(ids []uint) (*services.BulkResult, error)) error {
	ids, ok := parseIDs(c)
	if !ok {
		return badRequest(c, "No items selected")
	}
	result, err := run(ids)
	if err != nil {
		return h.fail(c, action, err)
	}
	return c.JSON(result)
}

func (h *AdminHandler) ActivateShops(c *fiber.Ctx) error {
	return h.bulk(c, "activate mechanics", func(ids []uint) (*services.BulkResult, error) {
		return h.admin.SetShopsActive(c.UserContext(), ids, true, middleware.Meta(c))
	})
}

func (h *AdminHandler) DeactivateShops(c *fiber.Ctx) error {
	return h.bulk(c, "deactivate mechanics", func(ids []uint) (*services.BulkResult, error) {
		return h.admin.SetShopsActive(c.UserContext(), ids, false, middleware.Meta(c))
	})
}

type ratingRequest struct {
	IDs    []uint      `json:"ids" form:"ids"`
	Rating *looseFloat `json:"rating" form:"rating"`
}

// BulkRating sets one rating on every selected shop, clamped to 0..5.
func (h *AdminHandler) BulkRating(c *fiber.Ctx) error {
	var req ratingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "No items selected")
	}
	if req.Rating == nil {
		return badRequest(c, "Rating required")
	}

	result, err := h.admin.BulkUpdateRating(c.UserContext(), req.IDs, float64(*req.Rating), middleware.Meta(c))
	if errors.Is(err, services.ErrInvalidRating) {
		return badRequest(c, "Rating must be a number")
	}
	if err != nil {
		return h.fail(c, "update ratings", err)
	}
	return c.JSON(result)
}

// ExportShops downloads the selected shops, or all of them, as CSV.
func (h *AdminHandler) ExportShops(c *fiber.Ctx) error {
	var req idsRequest
	if c.Method() == fiber.MethodPost {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request data")
		}
	}

	var buf bytes.Buffer
	if _, err := h.admin.ExportShopsCSV(c.UserContext(), req.IDs, &buf, middleware.Meta(c)); err != nil {
		return h.fail(c, "export mechanics", err)
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="mechanics_%s.csv"`, time.Now().Format("20060102")))
	return c.Send(buf.Bytes())
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.admin.ListUsers(c.UserContext(), c.Query("page"))
	if err != nil {
		return h.fail(c, "list users", err)
	}
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

func (h *AdminHandler) ActivateUsers(c *fiber.Ctx) error {
	return h.bulk(c, "activate users", func(ids []uint) (*services.BulkResult, error) {
		return h.admin.SetUsersActive(c.UserContext(), ids, true, middleware.Meta(c))
	})
}

func (h *AdminHandler) DeactivateUsers(c *fiber.Ctx) error {
	return h.bulk(c, "deactivate users", func(ids []uint) (*services.BulkResult, error) {
		return h.admin.SetUsersActive(c.UserContext(), ids, false, middleware.Meta(c))
	})
}

func (h *AdminHandler) GrantStaff(c *fiber.Ctx) error {
	return h.bulk(c, "grant staff", func(ids []uint) (*services.BulkResult, error) {
		return h.admin.SetUsersStaff(c.UserContext(), ids, true, middleware.Meta(c))
	})
}

func (h *AdminHandler) RevokeStaff(c *fiber.Ctx) error {
	return h.bulk(c, "revoke staff", func(ids []uint) (*services.BulkResult, error) {
		return h.admin.SetUsersStaff(c.UserContext(), ids, false, middleware.Meta(c))
	})
}

// LoginAttempts lists recent attempts for ?username=, within ?hours= (24).
func (h *AdminHandler) LoginAttempts(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return badRequest(c, "username is required")
	}
	attempts, err := h.admin.RecentLoginAttempts(c.UserContext(), username, c.QueryInt("hours", 24))
	if err != nil {
		return h.fail(c, "load login attempts", err)
	}
	return c.JSON(fiber.Map{"attempts": attempts, "count": len(attempts)})
}
