package service

import (
	"context"
	"log/slog"
	"time"
)

// SessionCleanup periodically purges expired sessions from the registry.
// Sessions carry a TTL; expired tokens are already rejected at resolve
// time, this just keeps the table from growing without bound.
type SessionCleanup struct {
	sessions SessionStore
	interval time.Duration
	done     chan struct{}
}

// NewSessionCleanup creates a new session cleanup service.
func NewSessionCleanup(sessions SessionStore, interval time.Duration) *SessionCleanup {
	return &SessionCleanup{
		sessions: sessions,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *SessionCleanup) Start(ctx context.Context) {
	slog.Info("session cleanup started", "interval", cs.interval)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.runCleanup(ctx)

		for {
			select {
			case <-ticker.C:
				cs.runCleanup(ctx)
			case <-ctx.Done():
				slog.Info("session cleanup stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *SessionCleanup) Wait() {
	<-cs.done
}

func (cs *SessionCleanup) runCleanup(ctx context.Context) {
	removed, err := cs.sessions.DeleteExpired(ctx)
	if err != nil {
		slog.Error("failed to purge expired sessions", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("purged expired sessions", "count", removed)
	}
}
