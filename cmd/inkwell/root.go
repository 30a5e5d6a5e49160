package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/inkwell/internal/api"
	"github.com/hyperengineering/inkwell/internal/auth"
	"github.com/hyperengineering/inkwell/internal/config"
	"github.com/hyperengineering/inkwell/internal/migration"
	"github.com/hyperengineering/inkwell/internal/remote"
	"github.com/hyperengineering/inkwell/internal/store"
	inksync "github.com/hyperengineering/inkwell/internal/sync"
	"github.com/hyperengineering/inkwell/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Inkwell - offline-first writing companion service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(dbCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 3. Initialize logger
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize local store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	db.SetMaxQueueAttempts(cfg.Sync.RetryMaxAttempts)
	db.SetVersionHistoryLimit(cfg.Sync.VersionHistoryLimit)
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Resolve the device identity; first launch mints a guest id
	identity, err := bootstrapIdentity(ctx, db)
	if err != nil {
		return err
	}
	provider := auth.NewStatic()
	provider.Register(cfg.Auth.APIKey, identity)

	// 6. Connect the remote store when a DSN is configured
	var (
		remoteDB    *remote.DB
		remoteStore inksync.Remote
	)
	if cfg.Remote.DSN != "" {
		remoteDB, err = remote.New(ctx, cfg.Remote.DSN)
		if err != nil {
			return fmt.Errorf("connect remote: %w", err)
		}
		if err := remote.EnsureSchema(ctx, remoteDB); err != nil {
			return fmt.Errorf("ensure remote schema: %w", err)
		}
		remoteStore = remote.NewStore(remoteDB)
		slog.Info("remote store connected")
	} else {
		slog.Info("running in offline mode")
	}

	// 7. Sync engine and guest migration
	engine := inksync.NewEngine(db, remoteStore, logger)
	migrator := migration.NewMigrator(db, logger)

	// 8. Initialize HTTP router
	handler := api.NewHandler(db, engine, migrator, provider, Version)
	router := api.NewRouter(handler, provider)

	// 9. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 10. Background workers
	var wg sync.WaitGroup
	if remoteStore != nil {
		coordinator := worker.NewSyncCoordinator(engine, time.Duration(cfg.Sync.Interval))
		startWorker(ctx, &wg, "sync-coordinator", coordinator.Run)
	}

	// 11. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 12. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 13. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 13a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 13b. Wait for workers to complete
	wg.Wait()

	// 13c. Close stores
	if remoteDB != nil {
		remoteDB.Close()
	}
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// bootstrapIdentity loads the device identity from the settings table.
// A signed-in user id wins; otherwise the guest id is used, minted on
// first launch.
func bootstrapIdentity(ctx context.Context, db *store.SQLiteStore) (auth.Identity, error) {
	userID, err := db.GetSetting(ctx, migration.UserIDKey)
	if err == nil && userID != "" {
		return auth.Identity{UserID: userID}, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return auth.Identity{}, fmt.Errorf("load user identity: %w", err)
	}

	guestID, err := db.GetSetting(ctx, migration.GuestIDKey)
	if errors.Is(err, store.ErrNotFound) {
		guestID = ulid.Make().String()
		if err := db.SetSetting(ctx, migration.GuestIDKey, guestID); err != nil {
			return auth.Identity{}, fmt.Errorf("persist guest identity: %w", err)
		}
		slog.Info("guest identity created", "guest_id", guestID)
	} else if err != nil {
		return auth.Identity{}, fmt.Errorf("load guest identity: %w", err)
	}
	return auth.Identity{GuestID: guestID}, nil
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
