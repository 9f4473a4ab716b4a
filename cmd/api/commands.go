package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/01moynul/inventory-tracker/internal/auth"
	"github.com/01moynul/inventory-tracker/internal/csvexchange"
	"github.com/01moynul/inventory-tracker/internal/handlers"
	"github.com/01moynul/inventory-tracker/internal/metrics"
	"github.com/01moynul/inventory-tracker/internal/models"
	"github.com/01moynul/inventory-tracker/internal/repository"
	"github.com/01moynul/inventory-tracker/internal/routes"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	// 1. --- Session Store ---
	sessions, closeSessions, err := openSessionStore(ctx, a)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 2. --- Application Setup ---
	h := &handlers.Handlers{
		Items:     a.items,
		Gate:      auth.NewGate(a.cfg.AuthUsername, a.cfg.AuthPasswordHash, a.logger),
		Tokens:    auth.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.SessionTTL),
		Sessions:  sessions,
		Decorator: a.decorator,
		Metrics:   metrics.New(),
		Logger:    a.logger,
	}

	// 3. --- Router Setup ---
	router := routes.SetupRouter(h, a.cfg.CORSOrigin)
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. --- Start Server ---
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting inventory API server", slog.String("addr", a.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// 5. --- Graceful Shutdown ---
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openSessionStore picks Redis when REDIS_ADDR is set, otherwise process memory.
func openSessionStore(ctx context.Context, a *app) (auth.SessionStore, func(), error) {
	if a.cfg.RedisAddr == "" {
		a.logger.Info("using in-memory session store")
		return auth.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.RedisAddr, err)
	}
	a.logger.Info("using redis session store", slog.String("addr", a.cfg.RedisAddr))
	return auth.NewRedisStore(client), func() { client.Close() }, nil
}

type exportOptions struct {
	out      string
	keyword  string
	category string
	metrics  bool
}

func exportCmd(envFile *string) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write items to a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.out == "-" {
				_, err := runExport(cmd.Context(), a, cmd.OutOrStdout(), opts)
				return err
			}
			if opts.out == "" {
				opts.out = csvexchange.ExportFilename(time.Now(), opts.category)
			}

			f, err := os.Create(opts.out)
			if err != nil {
				return err
			}
			n, err := runExport(cmd.Context(), a, f, opts)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d items to %s\n", n, opts.out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", `Output file ("-" for stdout; default inventory_export_<timestamp>.csv)`)
	cmd.Flags().StringVarP(&opts.keyword, "query", "q", "", "Only items whose name or SKU contains this text")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only items in this category")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Include profit, margin and recommendation columns")
	return cmd
}

func runExport(ctx context.Context, a *app, w io.Writer, opts exportOptions) (int, error) {
	items, err := a.items.List(ctx, models.ListFilter{Keyword: opts.keyword, Category: opts.category})
	if err != nil {
		return 0, err
	}
	views := a.decorator.Decorate(items)
	if err := csvexchange.Export(w, views, csvexchange.ExportOptions{IncludeMetrics: opts.metrics}); err != nil {
		return 0, err
	}
	return len(views), nil
}

func importCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Add items from a CSV file",
		Long: `Import reads a CSV file with a header row. Rows that cannot be parsed are
reported and skipped; the remaining rows are added in one transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return runImport(cmd.Context(), a, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runImport(ctx context.Context, a *app, r io.Reader, stdout, stderr io.Writer) error {
	result, err := csvexchange.Import(r)
	if err != nil {
		return err
	}
	for _, re := range result.Errors {
		fmt.Fprintf(stderr, "skipped %v\n", re)
	}

	ids, err := a.items.AddBatch(ctx, result.Items)
	if err != nil {
		var be *repository.BatchError
		if errors.As(err, &be) && be.Row < len(result.Lines) {
			return fmt.Errorf("import aborted at line %d, nothing was added: %w", result.Lines[be.Row], be.Err)
		}
		return fmt.Errorf("import aborted, nothing was added: %w", err)
	}

	fmt.Fprintf(stdout, "imported %d items, skipped %d rows\n", len(ids), len(result.Errors))
	return nil
}

func resetCmd(envFile *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every item and restart ids at 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all items without --yes")
			}
			a, err := openApp(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.items.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			a.logger.Warn("all items deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion of all items")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [PASSWORD]",
		Short: "Print a bcrypt hash for AUTH_PASSWORD_HASH",
		Long:  "Hashes PASSWORD, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			if plain == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashPassword(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
