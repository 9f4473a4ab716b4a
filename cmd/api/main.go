package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/01moynul/inventory-tracker/internal/config"
	"github.com/01moynul/inventory-tracker/internal/database"
	"github.com/01moynul/inventory-tracker/internal/pricing"
	"github.com/01moynul/inventory-tracker/internal/repository"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "inventory"
)

func main() {
	// Ctrl-C cancels whatever the command is doing, including a running server.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Team inventory tracker",
		Long: `Inventory keeps a shared catalog of stock items (name, SKU, category,
cost and selling price, quantity) and flags low-stock and high-margin items.

Configuration comes from the environment, optionally loaded from a .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file (ignored when missing)")

	cmd.AddCommand(
		serveCmd(&envFile),
		exportCmd(&envFile),
		importCmd(&envFile),
		resetCmd(&envFile),
		hashPasswordCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// app bundles what every storage-backed command needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *database.DB
	items     *repository.ItemRepository
	decorator pricing.Decorator
}

// openApp loads configuration, sets up logging and opens the database once.
func openApp(ctx context.Context, envFile string) (*app, error) {
	// 0. --- Load Environment Variables (.env) ---
	config.LoadEnv(nil, envFile)

	// 1. --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. --- Logging ---
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 3. --- Database Connection ---
	db, err := database.OpenDB(ctx, database.Options{
		Driver:           cfg.DBDriver,
		DSN:              cfg.DBDSN,
		BusyTimeout:      cfg.DBBusyTimeout,
		EnforceUniqueSKU: cfg.EnforceUniqueSKU,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		items:  repository.NewItemRepository(db),
		decorator: pricing.Decorator{
			RecommendThreshold: cfg.RecommendThreshold,
			LowStockThreshold:  cfg.LowStockThreshold,
		},
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
