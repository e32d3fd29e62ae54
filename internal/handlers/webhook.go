package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/metrics"
)

// WebhookHandler receives Twilio delivery callbacks for OTP messages.
type WebhookHandler struct {
	log *zap.Logger
}

func NewWebhookHandler(log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{log: log.Named("twilio_webhook")}
}

type statusCallback struct {
	MessageSid    string `form:"MessageSid"`
	MessageStatus string `form:"MessageStatus"`
	ErrorCode     string `form:"ErrorCode"`
}

// SMSStatus counts the reported delivery status. Signature checking is
// done by middleware.ValidateTwilioSignature.
func (h *WebhookHandler) SMSStatus(c *fiber.Ctx) error {
	var cb statusCallback
	if err := c.BodyParser(&cb); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if cb.MessageStatus == "" {
		cb.MessageStatus = "unknown"
	}

	metrics.SMSStatusCallbacks.WithLabelValues(cb.MessageStatus).Inc()

	fields := []zap.Field{
		zap.String("message_sid", cb.MessageSid),
		zap.String("status", cb.MessageStatus),
	}
	switch cb.MessageStatus {
	case "failed", "undelivered":
		h.log.Warn("OTP SMS not delivered", append(fields, zap.String("error_code", cb.ErrorCode))...)
	default:
		h.log.Debug("OTP SMS status", fields...)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
