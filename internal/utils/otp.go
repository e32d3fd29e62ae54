package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"regexp"
	"strings"
)

// GenerateSecureOTP generates a cryptographically secure numeric code of
// the given length. Leading zeros are kept.
func GenerateSecureOTP(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("invalid OTP length %d", length)
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

var nonDigits = regexp.MustCompile(`\D`)

// DigitsOnly strips everything but 0-9.
func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ClientIP returns the first X-Forwarded-For entry when it parses as an IP
// address, otherwise the remote address.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	return remoteAddr
}
