package transport

import (
	"context"
	"sync"
	"time"

	"ohhell-server/internal/wire"

	"github.com/pkg/errors"
)

// ConnectionHealth tracks the last time anything arrived on each connection.
type ConnectionHealth struct {
	lastActivity map[string]time.Time // connectionID -> last frame time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

// UpdateActivity records that a frame of any kind arrived on connectionID.
func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

// IsInactive reports whether connectionID has been silent for longer than
// timeout. Untracked connections are never inactive.
func (h *ConnectionHealth) IsInactive(connectionID string, timeout time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lastActivity, exists := h.lastActivity[connectionID]
	if !exists {
		return false
	}
	return time.Since(lastActivity) > timeout
}

func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

// pingInterval keeps at least two pings inside one liveness window.
func pingInterval(timeout time.Duration) time.Duration {
	interval := timeout / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// keepAlive pings the peer on a fixed interval and fails once the connection
// has been silent for longer than timeout. Either end runs one per
// connection, so each side detects a dead peer on its own.
func keepAlive(ctx context.Context, conn *Conn, health *ConnectionHealth, timeout time.Duration) error {
	ticker := time.NewTicker(pingInterval(timeout))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if health.IsInactive(conn.ID(), timeout) {
				logger.WithField("conn", conn.ID()).Warn("liveness timeout, closing connection")
				return ErrLivenessTimeout
			}
			if err := conn.SendControl(wire.Ping); err != nil {
				return errors.Wrap(err, "ping failed")
			}
		}
	}
}
