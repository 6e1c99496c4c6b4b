package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/cardroom/cardroom/cmd/cardroom/shared"
	"github.com/cardroom/cardroom/internal/room"
	"github.com/cardroom/cardroom/internal/server"
)

// ServerCmd runs the websocket card room server.
type ServerCmd struct {
	Config string `kong:"default='cardroom.hcl',help='Path to HCL configuration file'"`
	Addr   string `kong:"help='Listen address (host:port), overrides configuration'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	Seed   *int64 `kong:"help='Deterministic RNG seed for all tables (optional)'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		host, portStr, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid --addr port: %w", err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel)

	var opts []room.Option
	if c.Seed != nil {
		seed := *c.Seed
		logger.Info("using deterministic seed", "seed", seed)
		next := seed
		opts = append(opts, room.WithSeed(func() int64 {
			next++
			return next
		}))
	}

	rooms := room.NewManager(cfg.TableConfig(), logger, opts...)
	srv := server.New(cfg, rooms, logger)

	logger.Info("starting card room server",
		"addr", cfg.ListenAddress(),
		"small_blind", cfg.Table.SmallBlind,
		"big_blind", cfg.Table.BigBlind,
		"starting_chips", cfg.Table.StartingChips,
		"max_seats", cfg.Table.MaxSeats,
		"room_idle", cfg.RoomIdleAfter())

	ctx := shared.SetupSignalHandler(logger)
	return srv.Run(ctx)
}
