package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/artpar/roster/internal/core/domain"
	"github.com/artpar/roster/internal/shell/store"
	"github.com/spf13/cobra"
)

// DefaultAuditLimit is how many entries `roster audit` shows by default.
const DefaultAuditLimit = 20

func newAuditCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit trail entries",
		Long:  "Reads the activity log or the API tracking trail from the configured database.",
	}
	cmd.PersistentFlags().IntVarP(&limit, "limit", "l", DefaultAuditLimit, "Maximum number of entries to display")

	cmd.AddCommand(&cobra.Command{
		Use:   "activity",
		Short: "Show recent activity log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuditReader(*configPath, func(r store.AuditReader) error {
				return showActivity(cmd.Context(), r, cmd.OutOrStdout(), limit)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tracking",
		Short: "Show recent API tracking entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuditReader(*configPath, func(r store.AuditReader) error {
				return showTracking(cmd.Context(), r, cmd.OutOrStdout(), limit)
			})
		},
	})

	return cmd
}

// withAuditReader opens the configured database for the duration of fn.
func withAuditReader(configPath string, fn func(store.AuditReader) error) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}

	db, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return &ServerError{
			Op:       "audit",
			Err:      fmt.Errorf("failed to open database: %w", err),
			ExitCode: ExitDatabaseError,
		}
	}
	defer db.Close()

	return fn(db)
}

func showActivity(ctx context.Context, r store.AuditReader, w io.Writer, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	entries, err := r.RecentActivity(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing activity: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity entries found.")
		return nil
	}

	total, err := r.CountActivity(ctx)
	if err != nil {
		return fmt.Errorf("counting activity: %w", err)
	}

	fmt.Fprintf(w, "Showing %d of %d activity entries:\n\n", len(entries), total)
	for _, e := range entries {
		displayActivity(w, e)
	}
	return nil
}

func showTracking(ctx context.Context, r store.AuditReader, w io.Writer, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	entries, err := r.RecentTracking(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing tracking entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No tracking entries found.")
		return nil
	}

	total, err := r.CountTracking(ctx)
	if err != nil {
		return fmt.Errorf("counting tracking entries: %w", err)
	}

	fmt.Fprintf(w, "Showing %d of %d tracking entries:\n\n", len(entries), total)
	for _, e := range entries {
		displayTracking(w, e)
	}
	return nil
}

func displayActivity(w io.Writer, e domain.ActivityEntry) {
	fmt.Fprintf(w, "#%d  %s  %-16s %s\n", e.ID, e.CreatedAt.Format(time.RFC3339), e.Action, e.Description)
}

func displayTracking(w io.Writer, e domain.TrackingEntry) {
	fmt.Fprintf(w, "#%d  %s  %d  %s", e.ID, e.CreatedAt.Format(time.RFC3339), e.StatusCode, e.Endpoint)
	if e.RequestID != "" {
		fmt.Fprintf(w, "  [%s]", e.RequestID)
	}
	fmt.Fprintln(w)
	if e.Request != "" {
		fmt.Fprintf(w, "    request:  %s\n", e.Request)
	}
	fmt.Fprintf(w, "    response: %s\n", e.Response)
}
