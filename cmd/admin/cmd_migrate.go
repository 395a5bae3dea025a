package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AhmadRadith/jycc-sub001/internal/config"
	"github.com/AhmadRadith/jycc-sub001/internal/observability"
	"github.com/AhmadRadith/jycc-sub001/internal/persistence"
)

var migrateFlags struct {
	dir string
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations to the configured database",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFlags.dir, "dir", "", "Migrations directory (default POSTGRES_MIGRATIONS_DIR)")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for this command")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	dir := migrateFlags.dir
	if dir == "" {
		dir = cfg.Postgres.MigrationsDir
	}
	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), dir, logger); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
