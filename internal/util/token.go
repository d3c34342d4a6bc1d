package util

import (
	"crypto/rand"
	"encoding/base64"
)

// InviteTokenBytes is the entropy of an invite token
const InviteTokenBytes = 32

// GenerateURLToken returns a URL-safe random token encoding n random bytes
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = InviteTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
