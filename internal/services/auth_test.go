package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

var testMeta = RequestMeta{IP: "198.51.100.4", UserAgent: "go-test"}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "john_doe", "password123")

	pending, err := env.auth.BeginLogin(ctx, " john_doe ", "password123", testMeta)
	require.NoError(t, err)
	assert.Equal(t, user.ID, pending.ID)
	code := env.sender.lastCode()
	require.NotEmpty(t, code)

	_, err = env.auth.VerifyLogin(ctx, pending.ID, "999999x")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	verified, err := env.auth.VerifyLogin(ctx, pending.ID, code)
	require.NoError(t, err)
	require.NoError(t, env.auth.CompleteLogin(ctx, verified, "session-abc", testMeta))
	env.auth.Wait()
	env.activity.Flush()

	sessions := env.store.ListUserSessions(user.ID)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsActive)
	assert.Equal(t, "session-abc", sessions[0].SessionKey)
	assert.Equal(t, testMeta.IP, sessions[0].IPAddress)

	stored, err := env.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, env.clock.Now(), *stored.LastLogin)

	assert.Len(t, env.sender.alerts, 1)

	attempts, err := env.store.GetRecentLoginAttempts(ctx, "john_doe", env.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)

	activity, err := env.store.GetRecentActivity(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, models.ActionLogin, activity[0].Action)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "john_doe", "password123")

	_, err := env.auth.BeginLogin(ctx, "john_doe", "wrong-password", testMeta)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.BeginLogin(ctx, "nobody", "password123", testMeta)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Empty(t, env.sender.sent)

	attempts, err := env.store.GetRecentLoginAttempts(ctx, "john_doe", env.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, ReasonInvalidCredentials, attempts[0].FailureReason)
	require.NotNil(t, attempts[0].UserID)
}

func TestLoginInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "jane_smith", "password123")
	_, err := env.store.SetUsersActive(ctx, []uint{user.ID}, false)
	require.NoError(t, err)

	_, err = env.auth.BeginLogin(ctx, "jane_smith", "password123", testMeta)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLockoutBlocksSixthAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "john_doe", "password123")

	for i := 0; i < 5; i++ {
		_, err := env.auth.BeginLogin(ctx, "john_doe", "wrong", testMeta)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		env.clock.Advance(time.Minute)
	}

	locked, err := env.auth.IsAccountLocked(ctx, "john_doe")
	require.NoError(t, err)
	assert.True(t, locked)

	_, err = env.auth.BeginLogin(ctx, "john_doe", "password123", testMeta)
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Empty(t, env.sender.sent)

	attempts, err := env.store.GetRecentLoginAttempts(ctx, "john_doe", env.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, attempts, 6)
	assert.Equal(t, ReasonAccountLocked, attempts[0].FailureReason)

	// Once the window has passed the account opens again.
	env.clock.Advance(2 * time.Hour)
	_, err = env.auth.BeginLogin(ctx, "john_doe", "password123", testMeta)
	assert.NoError(t, err)
}

func TestLoginDispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "john_doe", "password123")
	env.sender.fail = errSendFailed

	_, err := env.auth.BeginLogin(ctx, "john_doe", "password123", testMeta)
	assert.ErrorIs(t, err, ErrOTPDispatch)

	attempts, err := env.store.GetRecentLoginAttempts(ctx, "john_doe", env.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, ReasonOTPSendFailed, attempts[0].FailureReason)
}

func TestVerifyLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.VerifyLogin(context.Background(), 42, "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogoutClosesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "john_doe", "password123")

	require.NoError(t, env.auth.CompleteLogin(ctx, user, "key-1", testMeta))
	require.NoError(t, env.auth.CompleteLogin(ctx, user, "key-2", testMeta))
	env.clock.Advance(5 * time.Minute)

	require.NoError(t, env.auth.Logout(ctx, user.ID, "key-1", testMeta))
	env.auth.Wait()
	env.activity.Flush()

	sessions := env.store.ListUserSessions(user.ID)
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].IsActive)
	require.NotNil(t, sessions[0].LogoutTime)
	assert.Equal(t, env.clock.Now(), *sessions[0].LogoutTime)
	assert.True(t, sessions[1].IsActive)

	activity, err := env.store.GetRecentActivity(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, models.ActionLogout, activity[0].Action)
}

func TestCloseStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "john_doe", "password123")

	_, err := env.sessions.Start(ctx, user.ID, "old", testMeta)
	require.NoError(t, err)
	env.clock.Advance(90 * time.Minute)
	_, err = env.sessions.Start(ctx, user.ID, "new", testMeta)
	require.NoError(t, err)

	n, err := env.sessions.CloseStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sessions := env.store.ListUserSessions(user.ID)
	assert.False(t, sessions[0].IsActive)
	assert.True(t, sessions[1].IsActive)
}
