package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/kelseyhightower/envconfig"

	"github.com/cardroom/cardroom/internal/game"
)

// Config is the complete server configuration: one server block and one
// table block holding the rules every room is created with.
type Config struct {
	Server Settings      `hcl:"server,block"`
	Table  TableSettings `hcl:"table,block"`
}

// Settings contains server-level configuration.
type Settings struct {
	Address      string `hcl:"address,optional" envconfig:"ADDRESS"`
	Port         int    `hcl:"port,optional" envconfig:"PORT"`
	LogLevel     string `hcl:"log_level,optional" envconfig:"LOG_LEVEL"`
	RoomIdleMins int    `hcl:"room_idle_minutes,optional" envconfig:"ROOM_IDLE_MINUTES"`
}

// TableSettings is the rule set applied to every room.
type TableSettings struct {
	MaxSeats      int `hcl:"max_seats,optional" envconfig:"MAX_SEATS"`
	MinPlayers    int `hcl:"min_players,optional" envconfig:"MIN_PLAYERS"`
	StartingChips int `hcl:"starting_chips,optional" envconfig:"STARTING_CHIPS"`
	SmallBlind    int `hcl:"small_blind,optional" envconfig:"SMALL_BLIND"`
	BigBlind      int `hcl:"big_blind,optional" envconfig:"BIG_BLIND"`
	MaxRounds     int `hcl:"max_rounds,optional" envconfig:"MAX_ROUNDS"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: Settings{
			Address:      "localhost",
			Port:         8080,
			LogLevel:     "info",
			RoomIdleMins: 30,
		},
		Table: TableSettings{
			MaxSeats:      8,
			MinPlayers:    2,
			StartingChips: 1000,
			SmallBlind:    5,
			BigBlind:      10,
		},
	}
}

// LoadConfig reads HCL configuration from filename, then applies
// CARDROOM_* environment overrides on top. A missing file yields the
// defaults, still subject to environment overrides.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filename); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
		}
		var parsed Config
		if diags = gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
		}
		merge(config, &parsed)
	}

	if err := envconfig.Process("CARDROOM_SERVER", &config.Server); err != nil {
		return nil, fmt.Errorf("server environment overrides: %w", err)
	}
	if err := envconfig.Process("CARDROOM_TABLE", &config.Table); err != nil {
		return nil, fmt.Errorf("table environment overrides: %w", err)
	}

	return config, nil
}

func merge(dst, src *Config) {
	if src.Server.Address != "" {
		dst.Server.Address = src.Server.Address
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.LogLevel != "" {
		dst.Server.LogLevel = src.Server.LogLevel
	}
	if src.Server.RoomIdleMins != 0 {
		dst.Server.RoomIdleMins = src.Server.RoomIdleMins
	}
	if src.Table.MaxSeats != 0 {
		dst.Table.MaxSeats = src.Table.MaxSeats
	}
	if src.Table.MinPlayers != 0 {
		dst.Table.MinPlayers = src.Table.MinPlayers
	}
	if src.Table.StartingChips != 0 {
		dst.Table.StartingChips = src.Table.StartingChips
	}
	if src.Table.SmallBlind != 0 {
		dst.Table.SmallBlind = src.Table.SmallBlind
	}
	if src.Table.BigBlind != 0 {
		dst.Table.BigBlind = src.Table.BigBlind
	}
	if src.Table.MaxRounds != 0 {
		dst.Table.MaxRounds = src.Table.MaxRounds
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Table.SmallBlind <= 0 {
		return fmt.Errorf("small blind must be positive")
	}
	if c.Table.BigBlind <= c.Table.SmallBlind {
		return fmt.Errorf("big blind must exceed small blind")
	}
	if c.Table.MaxSeats < 2 {
		return fmt.Errorf("max seats must be at least 2")
	}
	if c.Table.MinPlayers < 2 || c.Table.MinPlayers > c.Table.MaxSeats {
		return fmt.Errorf("min players must be between 2 and max seats")
	}
	if c.Table.StartingChips <= c.Table.BigBlind {
		return fmt.Errorf("starting chips must exceed the big blind")
	}
	return nil
}

// ListenAddress returns the host:port the server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// RoomIdleAfter returns how long a room may sit idle before it is
// reaped.
func (c *Config) RoomIdleAfter() time.Duration {
	return time.Duration(c.Server.RoomIdleMins) * time.Minute
}

// TableConfig converts the table settings into the engine's config.
func (c *Config) TableConfig() game.TableConfig {
	return game.TableConfig{
		MaxSeats:      c.Table.MaxSeats,
		MinPlayers:    c.Table.MinPlayers,
		StartingChips: c.Table.StartingChips,
		SmallBlind:    c.Table.SmallBlind,
		BigBlind:      c.Table.BigBlind,
		MaxRounds:     c.Table.MaxRounds,
	}
}
