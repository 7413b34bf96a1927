package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modvault/session-security/internal/config"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       *service.Sweeper

	closers []func() error
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, sweeper *service.Sweeper) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Observability: runtime, Sweeper: sweeper}
}

// Run serves HTTP and the periodic session sweep until the context is
// cancelled, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := a.Sweeper.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

func (a *App) OnClose(fn func() error) { a.closers = append(a.closers, fn) }

func (a *App) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	if a.Observability != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Observability.Shutdown(ctx); err != nil {
			a.Logger.Warn("observability shutdown failed", "error", err)
		}
	}
}
