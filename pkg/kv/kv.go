// Package kv provides the ephemeral, TTL-bounded key-value abstraction
// that backs opaque tokens, SIA replay guards, and authorization codes.
// Values are opaque strings; callers serialize structured records to JSON.
package kv

import (
	"context"
	"time"
)

// Store is the minimal contract every caller depends on: set with
// expiry, get, and delete. Implementations report storage failures as
// plain errors; callers map them to an Internal-kind error at the
// HTTP/gateway boundary.
type Store interface {
	// SetEx stores value under key with the given time-to-live.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the stored value and true, or "", false if the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}

// Consumer is implemented by backings that can perform a single
// round-trip get-then-delete. Single-use tokens (refresh tokens,
// WebSocket tickets, authorization codes) prefer this over a
// Get followed by a Del to avoid a window where a concurrent consumer
// could observe the same value twice.
type Consumer interface {
	// GetDel atomically reads and removes key, returning the value and
	// true, or "", false if the key was absent.
	GetDel(ctx context.Context, key string) (string, bool, error)
}

// Consume performs a single-use read: it prefers the backing's atomic
// GetDel when available, and falls back to a non-atomic Get+Del for a
// Store that does not implement Consumer (Memory and Redis both do).
func Consume(ctx context.Context, s Store, key string) (string, bool, error) {
	if c, ok := s.(Consumer); ok {
		return c.GetDel(ctx, key)
	}

	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.Del(ctx, key); err != nil {
		return "", false, err
	}
	return val, true, nil
}
