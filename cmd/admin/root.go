package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/bootstrap"
	"github.com/AhmadRadith/jycc-sub001/internal/config"
	"github.com/AhmadRadith/jycc-sub001/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "jycc-admin",
	Short: "Administrative tasks for the school-meal ticket service",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAccountCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(advisoryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the configuration, logger and stores shared by every command.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	stores *bootstrap.Stores
}

func (e *env) close() {
	if e.stores != nil {
		e.stores.Close()
	}
	_ = e.logger.Sync()
}

// loadEnv reads configuration and opens the stores. Commands that write data
// need Postgres; the in-memory fallback would discard their work.
func loadEnv(ctx context.Context, requirePostgres bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if requirePostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required for this command")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open stores: %w", err)
	}
	return &env{cfg: cfg, logger: logger, stores: stores}, nil
}
