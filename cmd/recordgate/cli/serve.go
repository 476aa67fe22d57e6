package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/recordgate/internal/config"
	"github.com/faucetdb/recordgate/internal/openapi"
	"github.com/faucetdb/recordgate/internal/server"
	"github.com/faucetdb/recordgate/internal/server/middleware"
	"github.com/faucetdb/recordgate/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recordgate API server",
		Long:  "Start the HTTP server that exposes the record API behind the authorizing gateway.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper()
			if err != nil {
				return err
			}
			for key, flag := range map[string]string{
				"server.port":  "port",
				"server.host":  "host",
				"store.driver": "driver",
				"store.dsn":    "dsn",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("driver", "sqlite", "record store driver (sqlite, postgres, mysql, sqlserver)")
	cmd.Flags().String("dsn", "recordgate.db", "record store data source name")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	events := newEmitter(os.Stdout, logger)

	// 1. Record store
	records, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("init record store: %w", err)
	}
	defer records.Close()
	logger.Info("record store initialized", "driver", records.Dialect())

	// 2. Rate limiter
	limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// 3. Authorizer
	authorizer := newAuthorizer(cfg.Auth, logger)
	if cfg.Auth.LegacyAPIKey != "" {
		logger.Warn("legacy shared-secret authentication is enabled and deprecated")
	}

	// 4. OpenAPI document
	doc, err := openapi.Render(openapi.Options{
		Version:      appVersion,
		HealthPath:   cfg.Server.HealthPath,
		LegacyAPIKey: cfg.Auth.LegacyAPIKey != "",
	})
	if err != nil {
		return err
	}

	// 5. HTTP server
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigin:      cfg.Server.CORSOrigin,
		IPRateLimit:     cfg.Server.IPRateLimit,
		HealthPath:      cfg.Server.HealthPath,
		LegacyAPIKey:    cfg.Auth.LegacyAPIKey,
		SuppressDetails: cfg.Errors.SuppressDetails,
		EdgeEnabled:     cfg.Edge.Enabled,
		Edge: middleware.EdgeConfig{
			ResourcePrefix: cfg.Edge.ResourcePrefix,
			Stage:          cfg.Edge.Stage,
			CacheTTL:       cfg.Edge.CacheTTL,
			CacheSize:      cfg.Edge.CacheSize,
		},
		Version: appVersion,
	}
	srv := server.New(srvCfg, server.Deps{
		Records:    records,
		Authorizer: authorizer,
		Limiter:    limiter,
		Events:     events,
		OpenAPI:    doc,
	}, logger)

	fmt.Fprintf(os.Stderr, "→ recordgate %s\n", appVersion)
	fmt.Fprintf(os.Stderr, "→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "→ Health:     http://%s:%d%s\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.HealthPath)

	return srv.ListenAndServe(ctx)
}
