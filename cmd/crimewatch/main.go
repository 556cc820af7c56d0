package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/citydata/crimewatch/internal/cli"
	"github.com/citydata/crimewatch/internal/handlers"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "crimewatch",
		Short:   "crimewatch - Chicago crime data warehouse loader",
		Version: handlers.APIVersion,
		Long: `crimewatch keeps a PostgreSQL warehouse in sync with the Chicago Data
Portal crime dataset: a one-time historical backfill, incremental daily
syncs from the stored checkpoint, and full-replace reconciliation of the
reference dimension tables.`,
	}

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.BackfillCmd())
	rootCmd.AddCommand(cli.DailyCmd())
	rootCmd.AddCommand(cli.DimensionsCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
