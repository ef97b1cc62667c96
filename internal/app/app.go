// Package app wires the modules into the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/provider"
	"github.com/ferdiebergado/gdprkit/internal/retention"
)

type App struct {
	server          *http.Server
	config          *config.Config
	provider        *provider.Provider
	modules         *Modules
	middlewares     []func(http.Handler) http.Handler
	ctx             context.Context
	stop            context.CancelFunc
	shutdownTimeout time.Duration
	background      sync.WaitGroup
}

func (a *App) registerMiddlewares() {
	for _, mw := range a.middlewares {
		a.provider.Router.Use(mw)
	}
}

// startWorkers launches the mail and audit queues and, when enabled, the
// retention scheduler. The scheduler stops on Shutdown.
func (a *App) startWorkers() {
	a.modules.Start()

	retentionCfg := a.config.Retention
	if !retentionCfg.Enabled {
		slog.Info("Retention is disabled.")
		return
	}

	scheduler := retention.NewScheduler(a.modules.Retention, retentionCfg.Interval.Duration)
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		scheduler.Run(a.ctx)
	}()
}

func (a *App) Start(ctx context.Context) error {
	a.registerMiddlewares()
	mountRoutes(a.provider, a.modules)
	a.startWorkers()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening...", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("listen and serve: %w", err)
			return
		}
		slog.Info("Server has stopped.")
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received.")
		return nil
	case err := <-serverErr:
		return err
	}
}

// Shutdown stops the server, waits for the scheduler and drains the queues
// before closing the broker connections.
func (a *App) Shutdown() error {
	slog.Info("Shutting down server...")
	a.stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}

	a.background.Wait()

	if err := a.modules.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := a.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func New(p *provider.Provider, middlewares []func(http.Handler) http.Handler) *App {
	serverCtx, stop := context.WithCancel(context.Background())
	serverCfg := p.Cfg.Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", serverCfg.Port),
		Handler: p.Router,
		BaseContext: func(_ net.Listener) context.Context {
			return serverCtx
		},
		ReadTimeout:  serverCfg.ReadTimeout.Duration,
		WriteTimeout: serverCfg.WriteTimeout.Duration,
		IdleTimeout:  serverCfg.IdleTimeout.Duration,
	}

	return &App{
		config:          p.Cfg,
		provider:        p,
		modules:         NewModules(p),
		server:          server,
		middlewares:     middlewares,
		ctx:             serverCtx,
		stop:            stop,
		shutdownTimeout: serverCfg.ShutdownTimeout.Duration,
	}
}
