package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/heartboard"
	"github.com/jpalmerr/heartboard/config"
	"github.com/jpalmerr/heartboard/internal/poller"
	"github.com/jpalmerr/heartboard/telemetry"
)

// probeCmd performs a single acquisition and prints the classified reading.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Poll the sensor bridge once",
	Long: `Send one request to the configured sensor bridge and print how it was
classified, along with the hint the display would show.

Exit codes:
  0 - The bridge answered with a valid reading
  1 - The request or its classification failed

Example:
  heartboard probe -c config.yaml
  heartboard probe -c config.yaml --json`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	probeCmd.Flags().String("env-file", "", "load environment variables from a .env file first")
	probeCmd.Flags().Bool("json", false, "print the reading as JSON")
	_ = probeCmd.MarkFlagRequired("config")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	hb, err := heartboard.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client := poller.NewClient()
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp := client.Fetch(ctx, hb.SourceURL(), hb.RequestTimeout())
	out := cmd.OutOrStdout()

	if resp.Error != nil {
		fmt.Fprintf(out, "GET %s failed after %dms\n", hb.SourceURL(), resp.Latency.Milliseconds())
		fmt.Fprintf(out, "  Hint: %s\n", heartboard.Hint(nil))
		return fmt.Errorf("probe failed: %w", telemetry.TransportError(resp.Error))
	}

	reading, err := telemetry.Classify(resp.StatusCode, resp.Body, hb.Schema())
	if err != nil {
		fmt.Fprintf(out, "GET %s -> HTTP %d in %dms\n", hb.SourceURL(), resp.StatusCode, resp.Latency.Milliseconds())
		fmt.Fprintf(out, "  Error kind: %s\n", telemetry.KindOf(err))
		fmt.Fprintf(out, "  Hint:       %s\n", heartboard.Hint(nil))
		return fmt.Errorf("probe failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reading)
	}

	fmt.Fprintf(out, "GET %s -> HTTP %d in %dms\n", hb.SourceURL(), resp.StatusCode, resp.Latency.Milliseconds())
	fmt.Fprintf(out, "  Request ID: %s\n", resp.RequestID)
	fmt.Fprintf(out, "  Status:     %s\n", reading.Status())
	if bpm, ok := reading.Value(); ok {
		fmt.Fprintf(out, "  Heart rate: %d bpm\n", bpm)
	}
	fmt.Fprintf(out, "  Hint:       %s\n", heartboard.Hint(&reading))
	return nil
}
