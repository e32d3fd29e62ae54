package utils

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureOTP(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateSecureOTP(6)
		require.NoError(t, err)
		assert.Regexp(t, digits, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 150)

	code, err := GenerateSecureOTP(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)

	_, err = GenerateSecureOTP(0)
	assert.Error(t, err)
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "15550101", DigitsOnly("+1 (555) 01-01"))
	assert.Equal(t, "", DigitsOnly("abc"))
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", ClientIP("203.0.113.7, 10.0.0.1", "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP("", "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP(" , 10.0.0.1", "10.0.0.2"))
	assert.Equal(t, "2001:db8::1", ClientIP("2001:db8::1", "10.0.0.2"))
}

func TestClientIPIgnoresForgedForwardedFor(t *testing.T) {
	assert.Equal(t, "10.0.0.2", ClientIP(strings.Repeat("a", 50), "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP("unknown, 203.0.113.7", "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP("203.0.113.7:8080", "10.0.0.2"))
}
