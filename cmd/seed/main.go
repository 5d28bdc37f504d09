package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"inpatient-hub/backend/internal/config"
	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/internal/seed"
)

func main() {
	if err := newSeedCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	var configPath, file string

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Load the roster, workflows and ward tasks into PostgreSQL",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, file)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&file, "file", "", "seed fixture (defaults to seed.file from config)")
	return cmd
}

func run(ctx context.Context, configPath, file string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Log.Level)

	if file == "" {
		file = cfg.Seed.File
	}
	if file == "" {
		return fmt.Errorf("no seed file: pass --file or set seed.file")
	}
	fx, err := seed.LoadFile(file)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	rep, err := seed.Apply(ctx, store, fx, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d users, %d workflows, %d tasks (%d skipped)\n",
		rep.Users, rep.Workflows, rep.Tasks, rep.Skipped)
	return nil
}
