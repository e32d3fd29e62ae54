package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// SessionTracker keeps the audit rows for authenticated browser sessions.
// The session data itself lives in the cookie store.
type SessionTracker struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

func NewSessionTracker(store storage.Store, ttl time.Duration, log *zap.Logger) *SessionTracker {
	return &SessionTracker{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log.Named("sessions"),
	}
}

// Start records a new active session for the user.
func (t *SessionTracker) Start(ctx context.Context, userID uint, sessionKey string, meta RequestMeta) (*models.UserSession, error) {
	session := &models.UserSession{
		UserID:     userID,
		SessionKey: sessionKey,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		LoginTime:  t.now(),
		IsActive:   true,
	}
	if err := t.store.CreateUserSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create user session: %w", err)
	}
	return session, nil
}

// End closes the active session rows for (userID, sessionKey).
func (t *SessionTracker) End(ctx context.Context, userID uint, sessionKey string) (int64, error) {
	n, err := t.store.EndUserSession(ctx, userID, sessionKey, t.now())
	if err != nil {
		return 0, fmt.Errorf("end user session: %w", err)
	}
	return n, nil
}

// CloseStale ends sessions that started longer ago than the session TTL.
// Their cookies have expired, so nobody can log them out anymore.
func (t *SessionTracker) CloseStale(ctx context.Context) (int64, error) {
	now := t.now()
	n, err := t.store.EndStaleSessions(ctx, now.Add(-t.ttl), now)
	if err != nil {
		return 0, fmt.Errorf("end stale sessions: %w", err)
	}
	if n > 0 {
		t.log.Info("closed stale sessions", zap.Int64("count", n))
	}
	return n, nil
}
