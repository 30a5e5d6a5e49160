// Package migration promotes guest-owned writing data to a signed-in user
// account. The heavy lifting is one storage transaction; this package wraps
// it with the guest marker cleanup and result reporting the sign-in flow
// needs.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/inkwell/internal/types"
)

// GuestIDKey is the settings key holding the device's guest identity.
const GuestIDKey = "guest_id"

// UserIDKey is the settings key holding the signed-in user identity.
// Written at sign-in so the identity survives restarts.
const UserIDKey = "user_id"

// Store is the slice of local storage the migrator needs.
type Store interface {
	MigrateGuestProjects(ctx context.Context, guestID, userID string) (*types.MigrationResult, error)
	GetSetting(ctx context.Context, key string) (string, error)
	DeleteSetting(ctx context.Context, key string) error
}

// Migrator runs guest-to-user ownership transfers.
type Migrator struct {
	store  Store
	logger *slog.Logger
}

func NewMigrator(store Store, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: store, logger: logger}
}

// Migrate transfers everything owned by the device's guest identity to
// userID and clears the guest marker. With no guest identity present it
// reports a zero-count success, so running it on every sign-in is safe.
// The ownership transfer commits atomically; only the marker cleanup
// happens after the fact, and a crash between the two leaves a guest id
// that simply owns nothing on the next run.
func (m *Migrator) Migrate(ctx context.Context, userID string) (*types.MigrationResult, error) {
	guestID, err := m.store.GetSetting(ctx, GuestIDKey)
	if errors.Is(err, types.ErrNotFound) {
		return &types.MigrationResult{Success: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest marker: %w", err)
	}

	result, err := m.store.MigrateGuestProjects(ctx, guestID, userID)
	if err != nil {
		m.logger.Error("guest migration failed", "guest_id", guestID, "user_id", userID, "error", err)
		return &types.MigrationResult{Error: err.Error()}, err
	}

	if err := m.store.DeleteSetting(ctx, GuestIDKey); err != nil {
		// The transfer is committed; a stale marker only means a harmless
		// re-run later.
		m.logger.Warn("failed to clear guest marker", "guest_id", guestID, "error", err)
	}

	m.logger.Info("guest migration complete",
		"guest_id", guestID,
		"user_id", userID,
		"records", result.Total(),
		"versions", result.Versions)
	return result, nil
}
