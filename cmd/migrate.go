package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/phototag/internal/config"
	"github.com/kozaktomas/phototag/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := connectDatabase(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	applied, err := postgres.GetGlobalPool().MigrationsApplied(ctx)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	fmt.Printf("Database is up to date (%d migrations applied)\n", len(applied))
	for _, m := range applied {
		fmt.Printf("  %s\n", m)
	}
	return nil
}
