package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/middleware"
	envx "github.com/ferdiebergado/gdprkit/internal/pkg/env"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/provider"
	"github.com/ferdiebergado/goexpress"
	"github.com/ferdiebergado/gopherkit/env"
)

// Bootstrap loads the environment and configuration, connects to the
// database and builds the provider. cleanup closes what Bootstrap opened.
func Bootstrap(ctx context.Context) (p *provider.Provider, cleanup func(), err error) {
	if os.Getenv("ENV") != "production" {
		if err := env.Load(".env"); err != nil {
			slog.Warn("No .env file loaded.", "reason", err)
		}
	}

	cfg, err := config.Load(envx.Env("CONFIG_FILE", "config.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logging.SetupLogger(cfg.App.Env, cfg.App.LogLevel, os.Stdout)

	dbConn, err := db.NewPostgresDB(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	p, err = provider.New(ctx, cfg, dbConn)
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("new provider: %w", err)
	}

	cleanup = func() {
		closeDB(dbConn)
	}
	return p, cleanup, nil
}

func closeDB(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		slog.Error("Failed to close the database.", "reason", err)
	}
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context) error {
	slog.Info("Initializing...")

	p, cleanup, err := Bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	proxies, err := p.Cfg.Server.Proxies()
	if err != nil {
		return err
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.ResolveClientIP(proxies),
		middleware.InjectWriter,
		goexpress.RecoverFromPanic,
		middleware.LogRequest(p.Metrics),
		middleware.CORS(p.Cfg.Server.AllowedOrigin),
		middleware.ContextGuard,
		middleware.CheckContentType,
	}

	api := New(p, middlewares)
	if err := api.Start(ctx); err != nil {
		_ = api.Shutdown()
		return fmt.Errorf("start server: %w", err)
	}

	return api.Shutdown()
}
