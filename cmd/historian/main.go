// cmd/historian/main.go drains room events recorded by the server from
// redis and archives them in postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/heist/internal/cache"
	"github.com/jason-s-yu/heist/internal/config"
	"github.com/jason-s-yu/heist/internal/database"
	"github.com/jason-s-yu/heist/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("historian exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	if cfg.RedisAddr == "" {
		return errors.New("HEIST_REDIS_ADDR is required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("HEIST_DATABASE_URL is required")
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.CodeCacheSize, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	svc := historian.New(rdb, db, historian.Config{
		Queue:         cfg.RedisQueue,
		BatchSize:     cfg.HistorianBatchSize,
		FlushInterval: cfg.HistorianFlush,
	}, logger)

	return svc.Run(ctx)
}
