// Package app wires each binary's config, infrastructure, and domain
// services into a running HTTP server, and owns its background workers
// and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxora/voxora/internal/config"
	"github.com/voxora/voxora/internal/httpserver"
	"github.com/voxora/voxora/internal/platform"
	"github.com/voxora/voxora/internal/telemetry"
	"github.com/voxora/voxora/pkg/community"
	"github.com/voxora/voxora/pkg/gateway"
	"github.com/voxora/voxora/pkg/kv"
	"github.com/voxora/voxora/pkg/podauth"
	"github.com/voxora/voxora/pkg/presence"
	"github.com/voxora/voxora/pkg/session"
	"github.com/voxora/voxora/pkg/signing"
	"github.com/voxora/voxora/pkg/token"
)

// RunPod is the Pod binary's entry point: connects to infrastructure,
// wires the gateway and auth services, and serves until ctx is
// cancelled.
func RunPod(ctx context.Context, cfg *config.PodConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting voxora pod", "pod_id", cfg.PodID, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("pod migrations applied")

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
	directory := community.NewPostgresDirectory(db)
	users := podauth.NewPostgresUserStore(db)
	tokens := token.NewPodService(store)
	jwksCache := signing.NewJWKSCache(cfg.HubURL)

	sessions := session.NewRegistry()
	pres := presence.NewRegistry()
	bus := gateway.NewBus(logger)
	gw := gateway.NewServer(sessions, pres, bus, tokens, directory, logger)

	authSvc := podauth.NewService(jwksCache, store, users, tokens, logger, cfg.PodID, cfg.HubURL)
	authHandler := podauth.NewHandler(authSvc, "/gateway")

	metricsReg := telemetry.NewRegistry(telemetry.All()...)
	srv := httpserver.NewServer(cfg.CORSAllowedOrigins, logger, metricsReg, map[string]httpserver.Pinger{
		"database": db,
		"redis":    platform.RedisPinger{Client: rdb},
	})

	authHandler.Routes(srv.Router)
	srv.Router.Get("/gateway", gw.ServeHTTP)

	cleanupInterval, err := time.ParseDuration(cfg.SessionCleanupInterval)
	if err != nil {
		return fmt.Errorf("parsing SESSION_CLEANUP_INTERVAL: %w", err)
	}
	sweepInterval, err := time.ParseDuration(cfg.PresenceSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing PRESENCE_SWEEP_INTERVAL: %w", err)
	}
	gracePeriod, err := time.ParseDuration(cfg.PresenceGracePeriod)
	if err != nil {
		return fmt.Errorf("parsing PRESENCE_GRACE_PERIOD: %w", err)
	}

	go runSessionCleanupLoop(ctx, sessions, logger, cleanupInterval)
	go runPresenceSweepLoop(ctx, pres, bus, logger, sweepInterval, gracePeriod)

	return serve(ctx, logger, srv, cfg.ListenAddr())
}

// runSessionCleanupLoop periodically reaps disconnected sessions past
// their resume TTL, in the ticker-loop idiom a poller background worker
// uses elsewhere in this codebase.
func runSessionCleanupLoop(ctx context.Context, registry *session.Registry, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.CleanupExpired(); n > 0 {
				logger.Debug("reaped expired sessions", "count", n)
			}
		}
	}
}

// runPresenceSweepLoop periodically transitions users past their grace
// period to offline, reclaims stale offline entries, and broadcasts a
// PRESENCE_UPDATE for every user that just went offline.
func runPresenceSweepLoop(ctx context.Context, registry *presence.Registry, bus *gateway.Bus, logger *slog.Logger, interval, gracePeriod time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			offline := registry.SweepOffline(gracePeriod)
			for _, u := range offline {
				logger.Debug("user went offline", "user_id", u.UserID)
				gateway.BroadcastPresenceUpdate(bus, u.UserID, "offline", "online", u.Communities)
			}
		}
	}
}

// serve runs srv's HTTP listener until ctx is cancelled, then shuts it
// down gracefully.
func serve(ctx context.Context, logger *slog.Logger, handler http.Handler, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the gateway's WebSocket upgrade holds the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
