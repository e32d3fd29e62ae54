package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/geo"
	"github.com/Ananth-NQI/mechlocator-backend/internal/middleware"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
)

// MechanicHandler serves the public browsing and search endpoints.
type MechanicHandler struct {
	mechanics *services.MechanicService
	search    *services.SearchService
	activity  *services.ActivityLogger
	log       *zap.Logger
}

func NewMechanicHandler(mechanics *services.MechanicService, search *services.SearchService, activity *services.ActivityLogger, log *zap.Logger) *MechanicHandler {
	return &MechanicHandler{
		mechanics: mechanics,
		search:    search,
		activity:  activity,
		log:       log.Named("mechanics"),
	}
}

// Home lists active shops for the landing page.
func (h *MechanicHandler) Home(c *fiber.Ctx) error {
	result, err := h.mechanics.Home(c.UserContext(), services.HomeParams{
		Radius: c.Query("radius"),
		Rating: c.Query("rating"),
		SortBy: c.Query("sort_by"),
		Page:   c.Query("page"),
	})
	if err != nil {
		h.log.Error("home listing failed", zap.Error(err))
		return serverError(c, "Failed to load mechanics")
	}

	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionView, "Home page visited")
	return c.JSON(result)
}

// List is the searchable, sortable shop listing.
func (h *MechanicHandler) List(c *fiber.Ctx) error {
	params := services.ListParams{
		Search: c.Query("search"),
		Rating: c.Query("rating"),
		Sort:   c.Query("sort", "name"),
		Page:   c.Query("page"),
	}
	page, err := h.mechanics.List(c.UserContext(), params)
	if err != nil {
		h.log.Error("mechanic listing failed", zap.Error(err))
		return serverError(c, "Failed to load mechanics")
	}

	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionView, "Mechanic list page visited")
	return c.JSON(fiber.Map{
		"mechanics":     page.Shops,
		"page":          page,
		"search_query":  params.Search,
		"rating_filter": params.Rating,
		"sort_by":       params.Sort,
	})
}

// Detail shows one active shop. When lat and lng both parse the distance
// from that point is included.
func (h *MechanicHandler) Detail(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mechanic not found"})
	}

	var origin *geo.Point
	userLat, userLng := c.Query("lat"), c.Query("lng")
	if userLat != "" && userLng != "" {
		lat, latErr := strconv.ParseFloat(userLat, 64)
		lng, lngErr := strconv.ParseFloat(userLng, 64)
		if latErr == nil && lngErr == nil {
			origin = &geo.Point{Lat: lat, Lng: lng}
		}
	}

	shop, err := h.mechanics.Detail(c.UserContext(), uint(id), origin)
	if errors.Is(err, services.ErrShopNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mechanic not found"})
	}
	if err != nil {
		h.log.Error("mechanic detail failed", zap.Uint64("id", id), zap.Error(err))
		return serverError(c, "Failed to load mechanic")
	}

	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionView, "Mechanic detail viewed: "+shop.Name)
	return c.JSON(fiber.Map{
		"mechanic": shop,
		"user_lat": userLat,
		"user_lng": userLng,
	})
}

type searchRequest struct {
	Latitude  *looseFloat `json:"latitude" form:"latitude"`
	Longitude *looseFloat `json:"longitude" form:"longitude"`
	Radius    *looseFloat `json:"radius" form:"radius"`
	Rating    *looseFloat `json:"rating" form:"rating"`
}

type searchResult struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	Contact   string          `json:"contact"`
	Rating    decimal.Decimal `json:"rating"`
	Distance  float64         `json:"distance"`
	Latitude  decimal.Decimal `json:"latitude"`
	Longitude decimal.Decimal `json:"longitude"`
}

// Search is the JSON location search.
func (h *MechanicHandler) Search(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.Warn("invalid search request", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return badRequest(c, "Location required")
	}

	shops, err := h.search.SearchAndRecord(c.UserContext(), services.SearchParams{
		Origin:    geo.Point{Lat: float64(*req.Latitude), Lng: float64(*req.Longitude)},
		RadiusKm:  floatOr(req.Radius, services.DefaultRadiusKm),
		MinRating: floatOr(req.Rating, 0),
	}, middleware.Meta(c))
	if errors.Is(err, services.ErrInvalidSearch) {
		return badRequest(c, "Invalid request data")
	}
	if err != nil {
		h.log.Error("search failed", zap.Error(err))
		return serverError(c, "Search failed")
	}

	results := make([]searchResult, 0, len(shops))
	for _, shop := range shops {
		r := searchResult{
			ID:        shop.ID,
			Name:      shop.Name,
			Address:   shop.Address,
			Contact:   shop.Contact,
			Rating:    shop.Rating,
			Latitude:  shop.Latitude,
			Longitude: shop.Longitude,
		}
		if shop.Distance != nil {
			r.Distance = *shop.Distance
		}
		results = append(results, r)
	}

	return c.JSON(fiber.Map{
		"mechanics": results,
		"count":     len(results),
	})
}

type logCallRequest struct {
	MechanicID   looseString `json:"mechanic_id" form:"mechanic_id"`
	MechanicName string      `json:"mechanic_name" form:"mechanic_name"`
}

// LogCall records that a visitor tapped a shop's phone number.
func (h *MechanicHandler) LogCall(c *fiber.Ctx) error {
	var req logCallRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.Warn("invalid log-call request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request data",
		})
	}

	id := strings.TrimSpace(string(req.MechanicID))
	name := strings.TrimSpace(req.MechanicName)
	if id == "" || name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Missing mechanic information",
		})
	}

	h.activity.Log(c.UserContext(), middleware.Meta(c), models.ActionCall, fmt.Sprintf("Called mechanic: %s (ID: %s)", name, id))
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Call logged successfully",
	})
}
