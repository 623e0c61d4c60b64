package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const deviceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var deviceTokenPattern = regexp.MustCompile(`^DEV-[A-Z0-9]{5}$`)

// NewDeviceToken returns a token of the form DEV-XXXXX
func NewDeviceToken() (string, error) {
	b := make([]byte, 5)
	max := big.NewInt(int64(len(deviceAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate device token: %w", err)
		}
		b[i] = deviceAlphabet[n.Int64()]
	}
	return "DEV-" + string(b), nil
}

// IsDeviceToken reports whether token has the DEV-XXXXX form
func IsDeviceToken(token string) bool {
	return deviceTokenPattern.MatchString(token)
}
