package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/inkwell/internal/config"
	"github.com/hyperengineering/inkwell/internal/migration"
	"github.com/hyperengineering/inkwell/internal/store"
)

var (
	dbPathOverride string
	dbJSONOutput   bool
	dbResetForce   bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and manage the local database",
	Long:  "Inspect sync state and manage the local database without running the server.",
}

func init() {
	dbCmd.PersistentFlags().StringVar(&dbPathOverride, "path", "",
		"Database path (overrides config and INKWELL_DB_PATH)")
	dbCmd.PersistentFlags().BoolVar(&dbJSONOutput, "json", false,
		"Output in JSON format")

	dbResetCmd.Flags().BoolVar(&dbResetForce, "force", false,
		"Skip the confirmation prompt")

	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbResetCmd)
}

// resolveDBPath returns the database path from --path or config.
func resolveDBPath() (string, error) {
	if dbPathOverride != "" {
		return dbPathOverride, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Database.Path, nil
}

// dbStatus summarizes the local database for the status command.
type dbStatus struct {
	Path            string `json:"path"`
	GuestID         string `json:"guest_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	QueueDepth      int    `json:"queue_depth"`
	PoisonedEntries int    `json:"poisoned_entries"`
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local database and sync queue state",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}

		db, err := store.NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		status := dbStatus{Path: path}

		if guestID, err := db.GetSetting(ctx, migration.GuestIDKey); err == nil {
			status.GuestID = guestID
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if userID, err := db.GetSetting(ctx, migration.UserIDKey); err == nil {
			status.UserID = userID
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		entries, err := db.ListQueueEntries(ctx)
		if err != nil {
			return err
		}
		status.QueueDepth = len(entries)

		poisoned, err := db.ListPoisonedQueueEntries(ctx)
		if err != nil {
			return err
		}
		status.PoisonedEntries = len(poisoned)

		if dbJSONOutput {
			return printJSON(cmd.OutOrStdout(), status)
		}

		w := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintf(w, "Path:\t%s\n", status.Path)
		if status.UserID != "" {
			fmt.Fprintf(w, "User:\t%s\n", status.UserID)
		}
		if status.GuestID != "" {
			fmt.Fprintf(w, "Guest:\t%s\n", status.GuestID)
		}
		fmt.Fprintf(w, "Queued changes:\t%d\n", status.QueueDepth)
		fmt.Fprintf(w, "Poisoned entries:\t%d\n", status.PoisonedEntries)
		return w.Flush()
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the local database file",
	Long:  "Delete the local database file. Unsynced local changes are lost.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}

		if !dbResetForce {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete %s and all unsynced changes? [y/N]: ", path)
			var answer string
			fmt.Fscanln(cmd.InOrStdin(), &answer)
			if answer != "y" && answer != "Y" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to delete.")
				return nil
			}
			return fmt.Errorf("delete database: %w", err)
		}
		// WAL sidecar files are recreated on next start; remove leftovers.
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
		return nil
	},
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
