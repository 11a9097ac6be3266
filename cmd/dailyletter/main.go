package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/dailyletter/internal/app"
	"github.com/deusflow/dailyletter/internal/config"
	"github.com/deusflow/dailyletter/internal/logger"
	"github.com/deusflow/dailyletter/internal/metrics"
	"github.com/deusflow/dailyletter/internal/monitor"
	"github.com/deusflow/dailyletter/internal/storage"
)

var Version = "dev"

const defaultConfigPath = "config.yml"

// runDigest performs the run; replaced in tests.
var runDigest = app.Run

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		outPath    string
		workers    int
	)

	cmd := &cobra.Command{
		Use:           "dailyletter",
		Short:         "Build an HTML digest of recent feed entries with one-line AI summaries",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputPath = outPath
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Init(cfg.Debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
				go startMonitoringServer(ctx, cfg)
			}

			res, err := runDigest(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %v\n", res.Entries, res.Sinks)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "YAML config with rss_sources and content settings")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output HTML path (overrides OUTPUT_PATH)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "concurrent fetch and enrichment workers")

	cmd.AddCommand(validateCmd(&configPath))
	return cmd
}

func validateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration without running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d sources, provider %s, last %dh, max %d entries\n",
				len(cfg.Sources), cfg.SummaryProvider, cfg.HoursBack, cfg.MaxEntries)
			return nil
		},
	}
}

// loadConfig reads .env and the config file. The default config path is
// optional; an explicit --config must exist.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

func startMonitoringServer(ctx context.Context, cfg *config.Config) {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	srv := monitor.NewServer(metrics.Global, cfg.OutputPath)
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.CacheTTL())
		if err != nil {
			logger.Warn("Digest archive unavailable for monitoring", "error", err)
		} else {
			defer store.Close()
			srv.WithArchive(store)
		}
	}

	if err := srv.Run(ctx, ":"+port); err != nil {
		logger.Error("Monitoring server error", "error", err)
	}
}
