// Package session wraps the fiber session store with the keys the login
// flow uses.
package session

import (
	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
)

const (
	CookieName = "mechlocator_session"

	keyUserID        = "user_id"
	keyPendingUserID = "pending_login_user_id"
)

// Manager reads and writes the server-side session for a request.
type Manager struct {
	store *fibersession.Store
}

// NewManager builds a manager. A nil storage keeps sessions in memory.
func NewManager(cfg config.SessionConfig, storage fiber.Storage) *Manager {
	return &Manager{
		store: fibersession.New(fibersession.Config{
			Expiration:     cfg.TTL,
			Storage:        storage,
			KeyLookup:      "cookie:" + CookieName,
			CookieSecure:   cfg.CookieSecure,
			CookieHTTPOnly: true,
			CookieSameSite: "Lax",
			KeyGenerator:   uuid.NewString,
		}),
	}
}

func userIDFrom(sess *fibersession.Session, key string) (uint, bool) {
	id, ok := sess.Get(key).(uint)
	return id, ok && id != 0
}

// UserID returns the logged-in user id.
func (m *Manager) UserID(c *fiber.Ctx) (uint, bool, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return 0, false, err
	}
	id, ok := userIDFrom(sess, keyUserID)
	return id, ok, nil
}

// PendingUserID returns the user waiting for OTP verification.
func (m *Manager) PendingUserID(c *fiber.Ctx) (uint, bool, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return 0, false, err
	}
	id, ok := userIDFrom(sess, keyPendingUserID)
	return id, ok, nil
}

// SetPending remembers a user who passed the password step.
func (m *Manager) SetPending(c *fiber.Ctx, userID uint) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}
	sess.Set(keyPendingUserID, userID)
	return sess.Save()
}

// Login rotates the session id, stores the user and returns the new key.
func (m *Manager) Login(c *fiber.Ctx, userID uint) (string, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return "", err
	}
	if err := sess.Regenerate(); err != nil {
		return "", err
	}
	sess.Delete(keyPendingUserID)
	sess.Set(keyUserID, userID)
	key := sess.ID()
	if err := sess.Save(); err != nil {
		return "", err
	}
	return key, nil
}

// Key returns the current session id without modifying the session.
func (m *Manager) Key(c *fiber.Ctx) (string, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return "", err
	}
	return sess.ID(), nil
}

// Destroy drops the session data and expires the cookie.
func (m *Manager) Destroy(c *fiber.Ctx) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}
