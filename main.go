// Package main our entry point.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/auth"
	"github.com/johndosdos/chatroom/internal/config"
	"github.com/johndosdos/chatroom/internal/handler"
	"github.com/johndosdos/chatroom/internal/presence"
	ratelimiter "github.com/johndosdos/chatroom/internal/rate_limiter"
	"github.com/johndosdos/chatroom/internal/registry"
	"github.com/johndosdos/chatroom/internal/router"
	"github.com/johndosdos/chatroom/internal/session"
	"github.com/johndosdos/chatroom/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("Starting application...")

	// Init store
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store initialization failed")
	}
	defer db.Close()

	// Init presence, with an optional redis mirror
	var presenceOpts []presence.Option
	if cfg.RedisURL != "" {
		mirror, err := presence.NewRedisMirror(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer mirror.Close()

		if err := mirror.Reset(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to reset presence mirror")
		}
		presenceOpts = append(presenceOpts, presence.WithMirror(mirror))
		logger.Info().Msg("connected to Redis")
	}
	tracker := presence.New(db, logger, presenceOpts...)

	// The registry and coordinator are the heart of the app: every live
	// connection is registered here and every message fans out from here.
	reg := registry.New(logger)
	coord := session.New(reg, tracker, db, logger, session.Config{
		QueueSize:   cfg.SendQueueSize,
		RateLimit:   cfg.MsgRateLimit,
		RateWindow:  cfg.MsgRateWindow,
		IdleTimeout: cfg.IdleTimeout,
	})

	var authLimiter *ratelimiter.IPRateLimiter
	if cfg.AuthRateLimit > 0 {
		authLimiter = ratelimiter.NewIPRateLimiter(cfg.AuthRateLimit, time.Minute,
			ratelimiter.CleanupOpts{TTL: 10 * time.Minute, Interval: time.Minute}, logger)
		defer authLimiter.Stop()
	}

	mux := router.New(router.Deps{
		Logger:      logger,
		Store:       db,
		Auth:        auth.NewService(db, logger),
		Presence:    tracker,
		Coordinator: coord,
		Tokens: handler.TokenOptions{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.JWTTTL,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AuthLimiter:    authLimiter,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Hijacked websocket connections are not tracked by Shutdown, so
		// sessions derive from ctx and wind down when the signal arrives.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Give sessions a moment to mark their users offline.
	deadline := time.Now().Add(5 * time.Second)
	for reg.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	logger.Info().Msg("Server stopped")
}

// openStore connects the configured backend and clears online flags left
// behind by a previous process, since no connection survives a restart.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	db, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	n, err := db.ResetOnline(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if n > 0 {
		logger.Info().Int64("users", n).Msg("cleared stale online flags")
	}

	return db, nil
}

func connectStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info().Str("path", cfg.SQLitePath).Msg("Initializing SQLite database...")
		lite, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}

	logger.Info().Msg("Initializing Database connection...")
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("running database migrations...")
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	return pg, nil
}
