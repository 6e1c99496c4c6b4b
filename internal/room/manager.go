// Package room manages the registry of tables: lazy exactly-once
// creation by room ID, lookup, removal and idle reaping.
package room

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/cardroom/internal/game"
)

// Manager owns every live table, keyed by room ID. All methods are safe
// for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	tables map[string]*game.Table

	cfg    game.TableConfig
	logger *log.Logger
	clock  quartz.Clock
	seed   func() int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock substitutes the clock, for tests.
func WithClock(c quartz.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSeed substitutes the per-table RNG seed source, for deterministic
// tests.
func WithSeed(fn func() int64) Option {
	return func(m *Manager) { m.seed = fn }
}

// NewManager creates an empty registry. Every table it creates uses cfg.
func NewManager(cfg game.TableConfig, logger *log.Logger, opts ...Option) *Manager {
	m := &Manager{
		tables: make(map[string]*game.Table),
		cfg:    cfg,
		logger: logger.WithPrefix("room"),
		clock:  quartz.NewReal(),
		seed:   func() int64 { return time.Now().UnixNano() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the table for roomID, creating it on first reference.
// Concurrent callers racing on the same new ID all receive the same
// table.
func (m *Manager) Get(roomID string) *game.Table {
	m.mu.RLock()
	t, ok := m.tables[roomID]
	m.mu.RUnlock()
	if ok {
		return t
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-check: another goroutine may have created it between locks.
	if t, ok := m.tables[roomID]; ok {
		return t
	}
	t = game.New(roomID, m.cfg, rand.New(rand.NewSource(m.seed())), m.logger)
	m.tables[roomID] = t
	m.logger.Info("room created", "room", roomID, "rooms", len(m.tables))
	return t
}

// Lookup returns the table for roomID without creating one.
func (m *Manager) Lookup(roomID string) (*game.Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[roomID]
	return t, ok
}

// Remove drops a room from the registry. The table itself is left to its
// remaining subscribers.
func (m *Manager) Remove(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[roomID]; !ok {
		return false
	}
	delete(m.tables, roomID)
	m.logger.Info("room removed", "room", roomID, "rooms", len(m.tables))
	return true
}

// List returns the live room IDs in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of live rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// Sweep removes rooms idle for longer than idleAfter, checking every
// interval, until ctx is cancelled. Rooms with live subscribers are
// never reaped.
func (m *Manager) Sweep(ctx context.Context, interval, idleAfter time.Duration) error {
	ticker := m.clock.NewTicker(interval, "sweep")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.reap(idleAfter)
		}
	}
}

func (m *Manager) reap(idleAfter time.Duration) {
	cutoff := time.Now().Add(-idleAfter)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tables {
		if t.Subscribers() > 0 {
			continue
		}
		if t.LastActivity().Before(cutoff) {
			delete(m.tables, id)
			m.logger.Info("idle room reaped", "room", id, "rooms", len(m.tables))
		}
	}
}
