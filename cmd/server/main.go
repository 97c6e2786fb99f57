// cmd/server/main.go
//
// bankapp 執行檔：提供網頁介面與 REST API，並附帶維運子命令
// （資料庫遷移、計息、快照匯出匯入）。

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bankapp/internal/config"
	"bankapp/internal/metrics"
	"bankapp/internal/server"
	"bankapp/internal/storage"
)

const appName = "bankapp"

// 由 -ldflags 覆寫。
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags 為所有子命令共用的旗標。
type globalFlags struct {
	configPath string
	logLevel   string
}

// setup 載入設定並建立 logger。
func (g *globalFlags) setup() (*config.Config, *slog.Logger, error) {
	bootstrap := newLogger(config.LogConfig{Level: g.logLevel}, "", nil)
	cfg, err := config.NewLoader(bootstrap).Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log, g.logLevel, nil)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// open 載入設定並組裝 App。
func (g *globalFlags) open(ctx context.Context) (*App, error) {
	cfg, logger, err := g.setup()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger)
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	serve := serveCmd(g)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Bank accounts web app and REST API",
		Long: `bankapp manages simple, bonus and savings accounts.

It serves an HTML interface under /accounts/ and a JSON API under /api,
backed by PostgreSQL or SQLite. Redis caching and NATS events are optional.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve, migrateCmd(g), yieldsCmd(g), snapshotCmd(g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}

func serveCmd(g *globalFlags) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Create or update tables before serving")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if migrate {
		if err := storage.Migrate(app.db); err != nil {
			return err
		}
	}

	gin.SetMode(app.cfg.Server.Mode)
	s, err := server.NewServer(app.bank,
		server.WithLogger(app.logger),
		server.WithMetricsHandler(metrics.Handler(app.registry)),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              app.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Bank server listening", "addr", srv.Addr, "version", Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("Shutting down", "timeout", app.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			if err := storage.Migrate(app.db); err != nil {
				return err
			}
			app.logger.Info("Database migrated", "driver", app.cfg.Database.Driver)
			return nil
		},
	}
}

func yieldsCmd(g *globalFlags) *cobra.Command {
	var tax string
	cmd := &cobra.Command{
		Use:   "yields",
		Short: "Credit interest to every savings account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := decimal.NewFromString(tax)
			if err != nil {
				return fmt.Errorf("--tax: %w", err)
			}
			app, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.bank.GenerateYields(cmd.Context(), rate)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range report.Credits {
				fmt.Fprintf(out, "Nº %d\t+%s\t%s\n", c.Number, c.Amount.StringFixed(2), c.Balance.StringFixed(2))
			}
			fmt.Fprintf(out, "%d accounts credited, %s in total\n", len(report.Credits), report.Total.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&tax, "tax", "", "Interest rate in percent, e.g. 1.5")
	_ = cmd.MarkFlagRequired("tax")
	return cmd
}

func snapshotCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import all accounts and transactions as JSON",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write a JSON snapshot of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			snap, err := app.bank.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if err := storage.SaveSnapshot(args[0], snap); err != nil {
				return err
			}
			app.logger.Info("Snapshot exported", "file", args[0], "accounts", len(snap.Accounts))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the database contents with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := storage.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			app, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			if err := storage.Migrate(app.db); err != nil {
				return err
			}
			return app.bank.Restore(cmd.Context(), snap)
		},
	})
	return cmd
}
