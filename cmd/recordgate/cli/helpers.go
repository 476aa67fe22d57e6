package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/faucetdb/recordgate/internal/audit"
	"github.com/faucetdb/recordgate/internal/config"
	"github.com/faucetdb/recordgate/internal/ratelimit"
	"github.com/faucetdb/recordgate/internal/service"
)

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newEmitter writes security events to w as JSON lines regardless of the log
// format. At debug level they are mirrored into the operational log as well.
func newEmitter(w io.Writer, logger *slog.Logger) audit.Emitter {
	security := audit.NewLogEmitter(newLogger(config.LoggingConfig{Level: "info", Format: "json"}, w))
	if logger != nil && logger.Enabled(context.Background(), slog.LevelDebug) {
		return audit.MultiEmitter{security, audit.NewLogEmitter(logger)}
	}
	return security
}

// newAuthorizer builds the authorizer entrypoint from the auth section.
func newAuthorizer(cfg config.AuthConfig, logger *slog.Logger) *service.Authorizer {
	if cfg.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is not set, every bearer token will be denied")
	}
	validator := service.NewTokenValidator(service.TokenValidatorConfig{
		Secret:   cfg.JWTSecret,
		Audience: cfg.Audience,
		Issuer:   cfg.Issuer,
	})
	return service.NewAuthorizer(validator, logger)
}

// newLimiter builds the per-caller limiter over the configured counter
// store. The returned function releases the store; it must be called after
// the server has stopped.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) (*ratelimit.Limiter, func(), error) {
	switch cfg.Backend {
	case "redis":
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis counter store: %w", err)
		}
		logger.Info("rate limit counters in redis", "addr", client.Options().Addr)
		store := ratelimit.NewRedisStore(client, "")
		return ratelimit.NewLimiter(store, cfg.Limit, cfg.Window, logger), func() { client.Close() }, nil

	default:
		store := ratelimit.NewMemoryStore()
		sweepCtx, cancel := context.WithCancel(ctx)
		go store.RunSweeper(sweepCtx, cfg.Window)
		logger.Info("rate limit counters in memory")
		return ratelimit.NewLimiter(store, cfg.Limit, cfg.Window, logger), cancel, nil
	}
}

// cmdContext returns a background context for one-shot commands.
func cmdContext() context.Context {
	return context.Background()
}
