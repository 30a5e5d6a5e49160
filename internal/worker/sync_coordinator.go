package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hyperengineering/inkwell/internal/sync"
)

// SyncRunner triggers one push cycle. Satisfied by *sync.Engine.
// This interface allows testing with mock implementations.
type SyncRunner interface {
	SyncAll(ctx context.Context) (*sync.Result, error)
}

// SyncCoordinator runs push cycles on a fixed interval. It is the periodic
// trigger; manual triggers go through the API and share the engine's
// single-flight guard, so overlapping runs collapse into one.
type SyncCoordinator struct {
	runner   SyncRunner
	interval time.Duration
}

// NewSyncCoordinator creates a coordinator that syncs every interval.
func NewSyncCoordinator(runner SyncRunner, interval time.Duration) *SyncCoordinator {
	return &SyncCoordinator{
		runner:   runner,
		interval: interval,
	}
}

// Run starts the coordinator loop.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync-coordinator",
		"action", "worker_started",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Push immediately on start so offline edits from the previous session
	// don't wait a full interval.
	if !c.runOnce(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			if !c.runOnce(ctx) {
				return
			}
		}
	}
}

// runOnce executes one push cycle. Returns false if the loop should stop.
func (c *SyncCoordinator) runOnce(ctx context.Context) bool {
	result, err := c.runner.SyncAll(ctx)
	if err != nil {
		if errors.Is(err, sync.ErrNoRemote) {
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"action", "worker_stopped",
				"reason", "offline_mode",
			)
			return false
		}
		if ctx.Err() != nil {
			return false // Graceful shutdown, don't log as error
		}
		slog.Warn("sync cycle failed",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "cycle_failed",
			"error", err,
		)
		return true
	}

	if result.Synced > 0 || result.Failed > 0 {
		slog.Info("sync cycle completed",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "cycle_complete",
			"synced", result.Synced,
			"failed", result.Failed,
			"success", result.Success,
		)
	}
	return true
}
