package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remud/remud/pkg/config"
	"github.com/remud/remud/pkg/engine"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/storage"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"

	configPath  string
	metricsAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "remud",
	Short:   "ReMUD - a tick-driven scriptable textual world server",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (optional; env overrides always apply)")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the /metrics, /healthz, /readyz, /livez endpoints bind to")

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot storage, hydrate the world, and run the tick loop",
	RunE:  runServe,
}

// runServe boots storage, hydrates the World, and runs the engine until a
// signal or a client-issued shutdown action ends the process; a restart
// request boots a fresh store and engine and keeps serving.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("remud: load config: %w", err)
	}
	// --log-level/--log-json (already applied to the global logger by
	// cobra.OnInitialize) take precedence over the file/env-loaded
	// cfg.LogLevel/cfg.LogJSON, so re-init only if the flags were left at
	// their defaults and the config file set something more specific.
	if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-json") {
		log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	}

	metricsSrv := engine.MetricsServer(metricsAddr)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.Warn().Err(err).Msg("remud: metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		restart, err := runOnce(ctx, cfg)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
		log.Logger.Info().Msg("remud: restarting")
	}
}

// runOnce boots one Store+Engine instance and runs it to completion,
// returning whether a restart was requested (tick order item 10).
func runOnce(ctx context.Context, cfg config.Config) (bool, error) {
	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		return false, fmt.Errorf("remud: open storage: %w", err)
	}

	eng, err := engine.New(ctx, cfg, store)
	if err != nil {
		_ = store.Close()
		return false, fmt.Errorf("remud: boot: %w", err)
	}

	if err := eng.Listen(); err != nil {
		return false, err
	}
	log.Logger.Info().Str("addr", eng.Addr().String()).Msg("remud: listening")

	return eng.Run(ctx)
}
