package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// generateSecureToken returns length random bytes, URL-safe base64 encoded
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
