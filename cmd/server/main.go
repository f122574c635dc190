package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anonto42/nano-midea/socialsync/internal/bootstrap"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/router"
	"github.com/anonto42/nano-midea/socialsync/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(cfg.OtelStdout)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Stores, ledger, reactors and the event source
	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize runtime", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	router.SetupMiddleware(e, logger)
	router.SetupRoutes(e, rt.Routes())

	metrics := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	go func() {
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event source stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shutdown", slog.String("error", err.Error()))
	}
	if err := rt.Close(); err != nil {
		logger.Error("failed to close runtime", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", slog.String("error", err.Error()))
	}
	logger.Info("server exited")
}
