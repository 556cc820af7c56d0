package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the warehouse tables and indexes",
		Long:  `Create the crime fact table and all dimension tables. Safe to run multiple times (idempotent).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

// BackfillCmd returns the backfill command.
func BackfillCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Load the full crime history into an empty database",
		Long: `Fetch every crime record from the configured start date and bulk
load it into the fact table. The fact table must be empty; re-running a
backfill over existing data would collide on every record ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.sync.Backfill(ctx, limit)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}
			printSyncResult(result.Mode, result.RowsFetched, result.RowsDropped, result.RowsLoaded)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Override the configured fetch cap for this run")

	return cmd
}

// DailyCmd returns the daily command.
func DailyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Load records newer than the stored checkpoint",
		Long: `Fetch everything dated after the newest stored record and append it
to the fact table. Fails when the database is empty; run a backfill first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.sync.Daily(ctx, limit)
			if err != nil {
				return fmt.Errorf("daily sync failed: %w", err)
			}
			printSyncResult(result.Mode, result.RowsFetched, result.RowsDropped, result.RowsLoaded)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Override the configured fetch cap for this run")

	return cmd
}

// DimensionsCmd returns the dimensions command.
func DimensionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dimensions",
		Short: "Rebuild every dimension table from the portal",
		Long: `Fetch the community area, IUCR, ward, beat, and district reference
datasets and replace the dimension tables in a single transaction.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.dimensions.Reconcile(ctx, limit)
			if err != nil {
				return fmt.Errorf("dimension reconciliation failed: %w", err)
			}

			for table, rows := range result.Tables {
				fmt.Printf("  %-20s %d rows\n", table, rows)
			}
			fmt.Printf("Replaced %d dimension rows across %d tables.\n", result.RowsLoaded, len(result.Tables))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Override the configured per-dataset fetch cap")

	return cmd
}

// StatusCmd returns the status command.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored record count and checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.sync.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read status: %w", err)
			}

			fmt.Printf("Records:    %d\n", status.RecordCount)
			if status.Checkpoint == nil {
				fmt.Println("Checkpoint: (none - database is empty)")
			} else {
				fmt.Printf("Checkpoint: %s\n", status.Checkpoint.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func printSyncResult(mode string, fetched, dropped int, loaded int64) {
	fmt.Printf("%s complete: fetched %d, dropped %d, loaded %d\n", mode, fetched, dropped, loaded)
}
