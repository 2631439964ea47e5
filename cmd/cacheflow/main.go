package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/cache"
	"github.com/cacheflow/cacheflow/internal/config"
	"github.com/cacheflow/cacheflow/internal/database"
	"github.com/cacheflow/cacheflow/internal/engine"
	"github.com/cacheflow/cacheflow/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cacheflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	redisStore := cache.NewRedis(&cfg.Redis)
	defer redisStore.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := redisStore.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	logger.WithField("addr", cfg.Redis.Host+":"+cfg.Redis.Port).Info("Connected to Redis")

	pool, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	repo := database.NewUserRepository(pool, logger)

	eng := engine.New(redisStore, repo, &cfg.Cache, logger)
	eng.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(eng, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("Starting cacheflow server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}

	// Stops both workers, then drains whatever is still queued so the
	// data-loss window ends here.
	if err := eng.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("Engine shutdown failed")
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
