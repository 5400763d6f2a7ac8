package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/heartboard"
	"github.com/jpalmerr/heartboard/config"
	"github.com/jpalmerr/heartboard/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the display server",
	Long: `Start the HeartBoard display server.

The server will:
  - Load configuration from the specified YAML file
  - Poll the sensor bridge at the configured interval
  - Serve the display and its API on the configured port
  - Mirror the device state onto the Modbus actuator, if configured

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  heartboard serve -c config.yaml
  heartboard serve -c config.yaml --env-file .env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("env-file", "", "load environment variables from a .env file first")
	serveCmd.Flags().Bool("debug", false, "log every poll")
	_ = serveCmd.MarkFlagRequired("config")
}

// loadConfig reads the optional env file and then the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, err
		}
	}
	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(configFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	logger := newLogger(level)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"schema", cfg.Schema,
		"actuator", cfg.Actuator != nil,
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts,
		heartboard.WithLogger(logger),
		heartboard.WithErrorReporter(func(kind telemetry.ErrorKind, message string) {
			logger.Warn("acquisition failed", "kind", string(kind), "error", message)
		}),
	)

	hb, err := heartboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create HeartBoard: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start blocks until ctx is cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- hb.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
