package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/itchan-dev/authd/backend/internal/router"
	"github.com/itchan-dev/authd/backend/internal/setup"
	"github.com/itchan-dev/authd/shared/config"
	"github.com/itchan-dev/authd/shared/logger"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := setup.SetupDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if err := deps.Bootstrap(ctx); err != nil {
		return err
	}

	// warm the cache before serving; a failure only costs extra database lookups
	if err := deps.Cache.Update(ctx); err != nil {
		logger.Log.Warn("initial revocation cache load failed", "error", err)
	} else {
		logger.Log.Info("revocation cache warmed", "entries", deps.Cache.Len())
	}
	deps.Cache.StartBackgroundUpdate(ctx, cfg.Public.RevocationCacheInterval)
	deps.Ledger.StartBackgroundPurge(ctx, cfg.Public.RevocationPurgeInterval)

	limits := router.DefaultLimits()
	srv := &http.Server{
		Addr:         cfg.Public.HTTP.Addr,
		Handler:      router.New(deps, limits),
		ReadTimeout:  cfg.Public.HTTP.ReadTimeout,
		WriteTimeout: cfg.Public.HTTP.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Public.HTTP.ShutdownTimeout)
		defer cancel()
		defer limits.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
