package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a HeartBoard configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  heartboard validate -c config.yaml
  heartboard validate -c config.yaml --env-file .env`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	validateCmd.Flags().String("env-file", "", "load environment variables from a .env file first")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	source := cfg.Source.URL
	if source == "" {
		source = fmt.Sprintf("%s:%d", cfg.Source.Host, cfg.Source.Port)
	}
	actuator := "none"
	if cfg.Actuator != nil {
		actuator = fmt.Sprintf("modbus %s (unit %d)", cfg.Actuator.Endpoint, cfg.Actuator.UnitID)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:            %d\n", cfg.Port)
	fmt.Printf("  Source:          %s\n", source)
	fmt.Printf("  Schema:          %s\n", cfg.Schema)
	fmt.Printf("  Poll interval:   %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Request timeout: %s\n", cfg.RequestTimeout.Duration())
	fmt.Printf("  Actuator:        %s\n", actuator)

	return nil
}
