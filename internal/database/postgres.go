// internal/database/postgres.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/heist/internal/store"
	"github.com/sirupsen/logrus"
)

// Postgres error codes we translate into domain errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	activeCodeIndex = "rooms_active_code_idx"
)

// DefaultCodeCacheSize bounds the code -> room id cache.
const DefaultCodeCacheSize = 1024

// Store is the Postgres implementation of store.Store. Lookups by code go
// through a small LRU of active rooms so joins skip the code index.
type Store struct {
	pool   *pgxpool.Pool
	codes  *lru.Cache
	logger logrus.FieldLogger
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool against url and pings it.
func Connect(ctx context.Context, url string, cacheSize int, logger logrus.FieldLogger) (*Store, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCodeCacheSize
	}
	codes, err := lru.New(cacheSize)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating code cache: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     config.ConnConfig.Host,
		"database": config.ConnConfig.Database,
	}).Info("connected to database")
	return &Store{pool: pool, codes: codes, logger: logger}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id            UUID PRIMARY KEY,
		code          TEXT NOT NULL,
		name          TEXT NOT NULL,
		host_id       TEXT NOT NULL,
		traitor_count INT NOT NULL,
		hero_count    INT NOT NULL,
		status        TEXT NOT NULL,
		version       BIGINT NOT NULL,
		game          JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + activeCodeIndex + ` ON rooms (code) WHERE status <> 'ended'`,
	`CREATE INDEX IF NOT EXISTS rooms_code_created_idx ON rooms (code, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS room_players (
		id           UUID PRIMARY KEY,
		room_id      UUID NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
		join_seq     BIGSERIAL,
		user_id      TEXT NOT NULL,
		display_name TEXT NOT NULL,
		avatar_id    INT NOT NULL,
		ready        BOOLEAN NOT NULL DEFAULT FALSE,
		is_host      BOOLEAN NOT NULL DEFAULT FALSE,
		is_alive     BOOLEAN NOT NULL DEFAULT TRUE,
		role         TEXT NOT NULL DEFAULT '',
		alignment    TEXT NOT NULL DEFAULT '',
		joined_at    TIMESTAMPTZ NOT NULL,
		UNIQUE (room_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS room_messages (
		seq         BIGSERIAL PRIMARY KEY,
		id          UUID NOT NULL UNIQUE,
		room_id     UUID NOT NULL REFERENCES rooms (id) ON DELETE CASCADE,
		sender_id   TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		content     TEXT NOT NULL,
		is_system   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS room_messages_room_idx ON room_messages (room_id, created_at, seq)`,
	`CREATE TABLE IF NOT EXISTS room_events (
		id         BIGSERIAL PRIMARY KEY,
		room_id    UUID NOT NULL,
		event_type TEXT NOT NULL,
		actor_id   TEXT NOT NULL DEFAULT '',
		version    BIGINT NOT NULL DEFAULT 0,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room_id, id)`,
}

// Migrate creates the tables the store needs if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// pgError unwraps err into a Postgres error with code, if it is one.
func pgError(err error, code string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr, true
	}
	return nil, false
}
