// Package token implements the opaque-token lifecycle: generation,
// storage, lookup, consumption, and rotation of access tokens, refresh
// tokens, and WebSocket tickets.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Generate returns a new opaque token: 32 bytes of CSPRNG, base64url
// encoded without padding, prefixed with the given scheme tag.
func Generate(prefix string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(b), nil
}
