package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.ListenAddress())
	assert.Equal(t, 30*time.Minute, cfg.RoomIdleAfter())
	assert.Equal(t, 5, cfg.Table.SmallBlind)
	assert.Equal(t, 10, cfg.Table.BigBlind)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardroom.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
}

table {
  max_seats      = 6
  starting_chips = 2500
  small_blind    = 10
  big_blind      = 20
  max_rounds     = 100
}
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress())
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	tc := cfg.TableConfig()
	assert.Equal(t, 6, tc.MaxSeats)
	assert.Equal(t, 2500, tc.StartingChips)
	assert.Equal(t, 10, tc.SmallBlind)
	assert.Equal(t, 20, tc.BigBlind)
	assert.Equal(t, 100, tc.MaxRounds)
	// Unset fields keep their defaults.
	assert.Equal(t, 2, tc.MinPlayers)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`server {`), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CARDROOM_SERVER_PORT", "7777")
	t.Setenv("CARDROOM_TABLE_BIG_BLIND", "50")
	t.Setenv("CARDROOM_TABLE_SMALL_BLIND", "25")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Table.SmallBlind)
	assert.Equal(t, 50, cfg.Table.BigBlind)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero small blind", func(c *Config) { c.Table.SmallBlind = 0 }},
		{"big blind not above small", func(c *Config) { c.Table.BigBlind = c.Table.SmallBlind }},
		{"one seat", func(c *Config) { c.Table.MaxSeats = 1 }},
		{"min players above seats", func(c *Config) { c.Table.MinPlayers = 9 }},
		{"stack below blind", func(c *Config) { c.Table.StartingChips = 10 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
