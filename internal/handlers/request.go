package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/mechlocator-backend/internal/services"
)

// looseString decodes a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// looseFloat decodes a JSON number or a numeric string.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = looseFloat(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return err
	}
	if !services.IsFinite(n) {
		return fmt.Errorf("%q is not a finite number", str)
	}
	*f = looseFloat(n)
	return nil
}

func floatOr(f *looseFloat, def float64) float64 {
	if f == nil {
		return def
	}
	return float64(*f)
}

// idsRequest selects rows for a bulk admin action.
type idsRequest struct {
	IDs []uint `json:"ids" form:"ids"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func serverError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}
