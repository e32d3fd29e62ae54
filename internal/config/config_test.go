package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"OTP_LENGTH", "OTP_EXPIRY_MINUTES", "OTP_CHANNEL", "LOCKOUT_MAX_ATTEMPTS", "LOCKOUT_WINDOW", "SESSION_TTL", "ALLOWED_HOSTS", "DATABASE_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 10*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, "email", cfg.OTP.Channel)
	assert.Equal(t, 5, cfg.Lockout.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Lockout.Window)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedHosts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OTP_LENGTH", "8")
	t.Setenv("OTP_EXPIRY_MINUTES", "5")
	t.Setenv("OTP_CHANNEL", "SMS")
	t.Setenv("LOCKOUT_WINDOW", "30m")
	t.Setenv("ALLOWED_HOSTS", "example.com, api.example.com ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.OTP.Length)
	assert.Equal(t, 5*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, "sms", cfg.OTP.Channel)
	assert.Equal(t, 30*time.Minute, cfg.Lockout.Window)
	assert.Equal(t, []string{"example.com", "api.example.com"}, cfg.AllowedHosts)
}

func TestLoadRejectsBadOTPSettings(t *testing.T) {
	t.Setenv("OTP_LENGTH", "2")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("OTP_LENGTH", "6")
	t.Setenv("OTP_CHANNEL", "pigeon")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveCleanupInterval(t *testing.T) {
	t.Setenv("CLEANUP_INTERVAL", "0s")
	_, err := Load()
	assert.ErrorContains(t, err, "CLEANUP_INTERVAL")

	t.Setenv("CLEANUP_INTERVAL", "-5m")
	_, err = Load()
	assert.ErrorContains(t, err, "CLEANUP_INTERVAL")
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "mech", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=mech port=5432 sslmode=disable", db.DSN())

	db.InstanceConnectionName = "proj:region:inst"
	assert.Contains(t, db.DSN(), "host=/cloudsql/proj:region:inst")

	db.URL = "postgres://x"
	assert.Equal(t, "postgres://x", db.DSN())
}
