package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/equipment-monitor/internal/config"
	"github.com/oshokin/equipment-monitor/internal/logger"
	"github.com/oshokin/equipment-monitor/internal/service/server"
	"github.com/oshokin/equipment-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateDir where the equipment registry and event queue are persisted.
	stateDir string
	// logLevel is the minimum level for log output.
	logLevel string

	// rootCmd represents the base command for running the monitor server.
	rootCmd = &cobra.Command{
		Use:   "monitor-server [listen-address]",
		Short: "Run the equipment monitor and its HTTP admin surface.",
		Long: `Starts the equipment monitor that tracks sensor updates, drives the
door/siren state machine and syncs recorded events to the remote API.

The server listens on the configured address or uses settings from the
configuration file. Listen address can be provided as argument to override
config (e.g., :9090, 0.0.0.0:8090). Equipment configuration and the pending
event queue are persisted to JSON files for recovery across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateDir:      stateDir,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the monitor-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateDir, "state-dir", "s", "", "directory for equipment and queue state files")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")
}
