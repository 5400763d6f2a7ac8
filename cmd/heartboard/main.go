// Package main is the entry point for the heartboard CLI.
//
// HeartBoard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	heartboard serve -c config.yaml    # Start the display
//	heartboard validate -c config.yaml # Validate configuration
//	heartboard probe -c config.yaml    # Poll the bridge once
//	heartboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "heartboard",
	Short: "A live heart-rate display for a sensor bridge",
	Long: `HeartBoard polls a heart-rate sensor bridge and shows the wearer's
heart rate, or a hint about the sensor state, on a web display.

Quick start:
  1. Create a config file (heartboard.yaml)
  2. Run: heartboard serve -c heartboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 1s
  source:
    url: http://192.168.240.1:80`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this heartboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("heartboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
