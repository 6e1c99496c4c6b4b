// Package server exposes the room registry over websockets: clients
// send table events and queries as JSON frames and receive state
// snapshots, including live per-room subscription streams.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/cardroom/cardroom/internal/room"
)

const sweepInterval = time.Minute

// Server is the websocket front end over a room manager.
type Server struct {
	cfg      *Config
	rooms    *room.Manager
	logger   *log.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates a server around an existing room manager.
func New(cfg *Config, rooms *room.Manager, logger *log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		rooms:  rooms,
		logger: logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The protocol carries no credentials; origin checks are the
			// deployment's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.http = &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// room sweeper runs alongside the listener.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := s.rooms.Sweep(ctx, sweepInterval, s.cfg.RoomIdleAfter())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.logger.Debug("client connected", "remote", conn.RemoteAddr())
	NewConnection(conn, s.rooms, s.logger).Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"rooms":  s.rooms.Len(),
	})
}
