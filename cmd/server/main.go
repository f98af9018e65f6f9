// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/heist/internal/auth"
	"github.com/jason-s-yu/heist/internal/cache"
	"github.com/jason-s-yu/heist/internal/config"
	"github.com/jason-s-yu/heist/internal/database"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/handlers"
	"github.com/jason-s-yu/heist/internal/realtime"
	"github.com/jason-s-yu/heist/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
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
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		logger.WithField("path", cfg.BoltPath).Info("using bolt store")
		return store.OpenBolt(cfg.BoltPath)
	case config.StorePostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.CodeCacheSize, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	logger.Warn("using in-memory store, rooms are lost on restart")
	return store.NewMemoryStore(), nil
}

func newIssuer(cfg config.Config) (*auth.Issuer, error) {
	expire, err := auth.ParseTokenExpire(cfg.TokenExpire)
	if err != nil {
		return nil, err
	}
	if cfg.PrivateKeyPath != "" {
		return auth.NewIssuerFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, expire)
	}
	return auth.NewIssuer(expire)
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	issuer, err := newIssuer(cfg)
	if err != nil {
		return fmt.Errorf("loading session keys: %w", err)
	}

	hub := realtime.NewHub(realtime.DefaultBuffer, logger)
	publishers := []game.Publisher{hub}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publishers = append(publishers, cache.NewRecorder(rdb, cfg.RedisQueue, logger))
		logger.WithField("queue", cfg.RedisQueue).Info("recording room events to redis")
	}

	svc, err := game.NewService(st, cfg.Rules(), logger, game.WithPublisher(publishers...))
	if err != nil {
		return err
	}
	defer svc.Close()

	resumed, err := svc.ResumeTimers(ctx)
	if err != nil {
		return fmt.Errorf("resuming phase timers: %w", err)
	}
	if resumed > 0 {
		logger.WithField("rooms", resumed).Info("resumed phase timers")
	}

	api := handlers.NewAPI(svc, hub, issuer, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.IdleRoomTimeout > 0 && cfg.ReapInterval > 0 {
		g.Go(func() error {
			reapIdle(gctx, svc, cfg.IdleRoomTimeout, cfg.ReapInterval, logger)
			return nil
		})
	}
	return g.Wait()
}

// reapIdle ends abandoned lobbies every interval until ctx is done.
func reapIdle(ctx context.Context, svc *game.Service, idle, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ReapIdle(ctx, idle)
			if err != nil {
				logger.WithError(err).Warn("idle room sweep failed")
				continue
			}
			if n > 0 {
				logger.WithField("rooms", n).Info("abandoned idle lobbies")
			}
		}
	}
}
