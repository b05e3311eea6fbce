// Package util provides utility functions shared across the bot's components.
package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecretHex returns a cryptographically random hex string of the
// given length. Used to derive an ephemeral signing secret when none is
// configured.
func GenerateSecretHex(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", length)
	}
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf)[:length], nil
}
