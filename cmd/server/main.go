package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/api"
	"github.com/Harshitk-cp/hyperholmes/internal/buildconfig"
	"github.com/Harshitk-cp/hyperholmes/internal/config"
	"github.com/Harshitk-cp/hyperholmes/internal/service"
	"github.com/Harshitk-cp/hyperholmes/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(config.LogLevel()); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	st, err := store.Open(ctx, store.Options{
		Driver:      config.StoreDriver(),
		DatabaseURL: config.DatabaseURL(),
		SQLitePath:  config.SQLitePath(),
	}, logger)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	if st != nil {
		defer st.Close()
	}

	cfg, err := service.ConfigFromEnv(logger)
	if err != nil {
		logger.Fatal("failed to build case configuration", zap.Error(err))
	}

	app := api.NewApp(service.NewCaseRegistry(cfg, st, logger), logger)
	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("store", config.StoreDriver()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop after the server drains so the final flush sees every write.
	app.Stop()

	logger.Info("server stopped")
}
