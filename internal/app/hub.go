package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voxora/voxora/internal/config"
	"github.com/voxora/voxora/internal/httpserver"
	"github.com/voxora/voxora/internal/platform"
	"github.com/voxora/voxora/internal/telemetry"
	"github.com/voxora/voxora/pkg/authhub"
	"github.com/voxora/voxora/pkg/kv"
	"github.com/voxora/voxora/pkg/signing"
)

// RunHub is the Hub binary's entry point: derives the signing keypair,
// connects to infrastructure, and serves the federation boundary
// (JWKS, SIA minting) until ctx is cancelled.
func RunHub(ctx context.Context, cfg *config.HubConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting voxora hub", "domain", cfg.HubDomain, "listen", cfg.ListenAddr())

	keys, err := signing.FromSeed(cfg.SigningKeySeed)
	if err != nil {
		return fmt.Errorf("deriving signing keypair: %w", err)
	}
	logger.Info("signing keypair derived", "kid", keys.Kid())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("hub migrations applied")

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	store := kv.NewRedis(rdb)
	tokens := authhub.NewTokenService(store)
	profiles := authhub.NewPostgresProfileStore(db)

	origin := "https://" + cfg.HubDomain
	handler := authhub.NewHandler(tokens, profiles, keys, origin, logger)

	metricsReg := telemetry.NewRegistry(telemetry.All()...)
	srv := httpserver.NewServer(cfg.CORSAllowedOrigins, logger, metricsReg, map[string]httpserver.Pinger{
		"database": db,
		"redis":    platform.RedisPinger{Client: rdb},
	})

	handler.Routes(srv.Router)

	return serve(ctx, logger, srv, cfg.ListenAddr())
}
