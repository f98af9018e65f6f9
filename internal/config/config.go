// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/heist/internal/auth"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Config struct {
	Port     string `envconfig:"HEIST_PORT" default:"8080"`
	LogLevel string `envconfig:"HEIST_LOG_LEVEL" default:"info"`

	StoreDriver   string `envconfig:"HEIST_STORE" default:"memory"`
	DatabaseURL   string `envconfig:"HEIST_DATABASE_URL"`
	BoltPath      string `envconfig:"HEIST_BOLT_PATH" default:"heist.db"`
	CodeCacheSize int    `envconfig:"HEIST_CODE_CACHE_SIZE" default:"1024"`

	// Redis is optional for the server; empty disables event recording.
	RedisAddr  string `envconfig:"HEIST_REDIS_ADDR"`
	RedisDB    int    `envconfig:"HEIST_REDIS_DB" default:"0"`
	RedisQueue string `envconfig:"HEIST_REDIS_QUEUE" default:"heist_events"`

	HistorianBatchSize int           `envconfig:"HEIST_HISTORIAN_BATCH_SIZE" default:"20"`
	HistorianFlush     time.Duration `envconfig:"HEIST_HISTORIAN_FLUSH" default:"500ms"`

	TokenExpire    string `envconfig:"HEIST_TOKEN_EXPIRE" default:"72h"`
	PrivateKeyPath string `envconfig:"HEIST_PRIVATE_KEY_PATH"`
	PublicKeyPath  string `envconfig:"HEIST_PUBLIC_KEY_PATH"`

	MaxPlayers           int           `envconfig:"HEIST_MAX_PLAYERS" default:"8"`
	AvatarPool           int           `envconfig:"HEIST_AVATAR_POOL" default:"18"`
	MaxRounds            int           `envconfig:"HEIST_MAX_ROUNDS" default:"3"`
	NightDuration        time.Duration `envconfig:"HEIST_NIGHT_DURATION" default:"45s"`
	DayDuration          time.Duration `envconfig:"HEIST_DAY_DURATION" default:"90s"`
	TaskDuration         time.Duration `envconfig:"HEIST_TASK_DURATION" default:"60s"`
	TaskWinThreshold     int           `envconfig:"HEIST_TASK_WIN_THRESHOLD" default:"3"`
	SabotageWinThreshold int           `envconfig:"HEIST_SABOTAGE_WIN_THRESHOLD" default:"3"`
	TiePolicy            string        `envconfig:"HEIST_TIE_POLICY" default:"none"`
	RoundLimitRule       string        `envconfig:"HEIST_ROUND_LIMIT_RULE" default:"headcount"`
	MaxMessageLength     int           `envconfig:"HEIST_MAX_MESSAGE_LENGTH" default:"500"`

	IdleRoomTimeout time.Duration `envconfig:"HEIST_IDLE_ROOM_TIMEOUT" default:"30m"`
	ReapInterval    time.Duration `envconfig:"HEIST_REAP_INTERVAL" default:"1m"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("processing the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Rules maps the game settings onto game.Rules.
func (c Config) Rules() game.Rules {
	return game.Rules{
		MaxPlayers:           c.MaxPlayers,
		AvatarPool:           c.AvatarPool,
		MaxRounds:            c.MaxRounds,
		NightDuration:        c.NightDuration,
		DayDuration:          c.DayDuration,
		TaskDuration:         c.TaskDuration,
		TaskWinThreshold:     c.TaskWinThreshold,
		SabotageWinThreshold: c.SabotageWinThreshold,
		TiePolicy:            game.TiePolicy(c.TiePolicy),
		RoundLimitRule:       game.RoundLimitRule(c.RoundLimitRule),
		MaxMessageLength:     c.MaxMessageLength,
	}
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreBolt:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("HEIST_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if _, err := auth.ParseTokenExpire(c.TokenExpire); err != nil {
		return err
	}
	if (c.PrivateKeyPath == "") != (c.PublicKeyPath == "") {
		return fmt.Errorf("private and public key paths must be set together")
	}
	if c.IdleRoomTimeout < 0 || c.ReapInterval < 0 {
		return fmt.Errorf("idle timeout and reap interval must not be negative")
	}
	return c.Rules().Validate()
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
