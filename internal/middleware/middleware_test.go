package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

const testAuthToken = "12345"

// sign reproduces Twilio's request signature: HMAC-SHA1 over the URL
// followed by the sorted form parameters.
func sign(rawURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := rawURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(testAuthToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/twilio/status", ValidateTwilioSignature(testAuthToken, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func webhookRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	return req
}

func TestValidateTwilioSignature(t *testing.T) {
	app := webhookApp()
	form := url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}}

	resp, err := app.Test(webhookRequest(form, sign("http://example.com/webhooks/twilio/status", form)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(webhookRequest(form, sign("http://example.com/other", form)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(webhookRequest(form, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireStaff(t *testing.T) {
	var current *models.User
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if current != nil {
			c.Locals(userLocalsKey, current)
		}
		return c.Next()
	})
	app.Get("/admin", RequireStaff(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/profile", RequireLogin(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	status := func(path string) int {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusUnauthorized, status("/admin"))
	assert.Equal(t, fiber.StatusUnauthorized, status("/profile"))

	current = &models.User{ID: 1, Username: "john_doe", IsActive: true}
	assert.Equal(t, fiber.StatusForbidden, status("/admin"))
	assert.Equal(t, fiber.StatusOK, status("/profile"))

	current = &models.User{ID: 2, Username: "admin", IsActive: true, IsStaff: true}
	assert.Equal(t, fiber.StatusOK, status("/admin"))
}

func TestMetaUsesForwardedFor(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals(userLocalsKey, &models.User{ID: 5})
		meta := Meta(c)
		require.NotNil(t, meta.UserID)
		assert.Equal(t, uint(5), *meta.UserID)
		assert.Equal(t, "203.0.113.7", meta.IP)
		assert.Equal(t, "go-test", meta.UserAgent)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "go-test")
	_, err := app.Test(req)
	require.NoError(t, err)
}
