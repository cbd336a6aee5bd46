package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/expert/internal/config"
	"rgehrsitz/expert/internal/metrics"
)

var (
	cfg       config.Config
	collector *metrics.Collector
	server    *metricsServer
)

var rootCmd = &cobra.Command{
	Use:           "rex",
	Short:         "rex evaluates prioritised rules against sets of facts",
	Long:          `rex loads rules and fact records from JSON, YAML or CSV files and reports which rules fire and the results their actions produce.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if server == nil {
			return nil
		}
		log.Info().Msg("Serving metrics until interrupted")
		return server.wait(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Error().Err(err).Msg("rex failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address until interrupted")
}

// setup resolves configuration (file, then environment, then flags) and configures logging.
func setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded
	overrideString(cmd, "log-level", &cfg.LogLevel)
	overrideString(cmd, "metrics-addr", &cfg.MetricsAddr)
	overrideString(cmd, "rules", &cfg.Rules)
	overrideString(cmd, "schema", &cfg.Schema)
	overrideString(cmd, "data", &cfg.Data)
	if cmd.Flags().Changed("pretty") {
		cfg.Pretty, _ = cmd.Flags().GetBool("pretty")
	}

	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	registry := prometheus.NewRegistry()
	if collector, err = metrics.NewCollector(registry); err != nil {
		return err
	}
	server = nil
	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		server = startMetricsServer(ln, registry)
	}
	return nil
}

func overrideString(cmd *cobra.Command, name string, target *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*target = f.Value.String()
	}
}
