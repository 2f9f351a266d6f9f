package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/storage"
)

var dsn string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remud-migrate",
	Short: "Apply pending ReMUD schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.Flags().StringVar(&dsn, "database-dsn", os.Getenv("REMUD_DATABASE_DSN"), "Postgres connection string (defaults to $REMUD_DATABASE_DSN)")
}

// runMigrate applies every embedded migration not already recorded in
// schema_migrations, in filename order, each inside its own transaction
// (storage.Migrate). Run this once per deploy before starting cmd/remud;
// cmd/remud also calls it on boot, so this binary exists for operators who
// want migrations applied as a separate, auditable step.
func runMigrate(cmd *cobra.Command, args []string) error {
	log.Init(log.Config{Level: log.InfoLevel})

	if dsn == "" {
		return fmt.Errorf("remud-migrate: --database-dsn (or $REMUD_DATABASE_DSN) is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("remud-migrate: connect: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("remud-migrate: ping: %w", err)
	}

	log.Logger.Info().Msg("remud-migrate: applying pending migrations")
	if err := storage.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("remud-migrate: %w", err)
	}
	log.Logger.Info().Msg("remud-migrate: up to date")
	return nil
}
