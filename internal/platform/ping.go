package platform

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPinger adapts *redis.Client to httpserver.Pinger (Ping returns a
// *StatusCmd, not a bare error).
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
