package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/heist/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.IdleRoomTimeout)
	assert.Equal(t, game.DefaultRules(), cfg.Rules())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HEIST_PORT", "9000")
	t.Setenv("HEIST_MAX_PLAYERS", "6")
	t.Setenv("HEIST_DAY_DURATION", "2m")
	t.Setenv("HEIST_TIE_POLICY", "random")
	t.Setenv("HEIST_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)

	rules := cfg.Rules()
	assert.Equal(t, 6, rules.MaxPlayers)
	assert.Equal(t, 2*time.Minute, rules.DayDuration)
	assert.Equal(t, game.TieRandom, rules.TiePolicy)
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger().GetLevel())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":        {"HEIST_STORE": "mongo"},
		"postgres without url": {"HEIST_STORE": "postgres"},
		"bad tie policy":       {"HEIST_TIE_POLICY": "coinflip"},
		"bad log level":        {"HEIST_LOG_LEVEL": "loud"},
		"bad duration":         {"HEIST_NIGHT_DURATION": "soon"},
		"half a key pair":      {"HEIST_PRIVATE_KEY_PATH": "/tmp/key"},
		"zero rounds":          {"HEIST_MAX_ROUNDS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
