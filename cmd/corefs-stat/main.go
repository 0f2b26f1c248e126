// Command corefs-stat reports bucket connectivity, backend metrics, and
// health-check status for an object storage bucket, without requiring a
// live mount.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/s3fuse/corefs/internal/bootstrap"
)

func main() {
	var (
		configPath string
		asJSON     bool
	)

	root := &cobra.Command{
		Use:   "corefs-stat",
		Short: "Report bucket connectivity and backend metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.LoadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			backend, err := bootstrap.BuildBackend(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to bucket: %w", err)
			}
			defer backend.Close()

			healthErr := backend.HealthCheck(ctx)
			metrics := backend.GetMetrics()

			report := struct {
				Bucket  string      `json:"bucket"`
				Region  string      `json:"region"`
				Healthy bool        `json:"healthy"`
				Error   string      `json:"error,omitempty"`
				Metrics interface{} `json:"metrics"`
			}{
				Bucket:  cfg.Bucket.Name,
				Region:  cfg.Bucket.Region,
				Healthy: healthErr == nil,
				Metrics: metrics,
			}
			if healthErr != nil {
				report.Error = healthErr.Error()
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Printf("bucket:   %s\n", report.Bucket)
			fmt.Printf("region:   %s\n", report.Region)
			if report.Healthy {
				fmt.Println("health:   ok")
			} else {
				fmt.Printf("health:   FAILED (%s)\n", report.Error)
			}
			fmt.Printf("requests: %d\n", metrics.Requests)
			fmt.Printf("errors:   %d\n", metrics.Errors)
			fmt.Printf("uploaded: %d bytes\n", metrics.BytesUploaded)
			fmt.Printf("downloaded: %d bytes\n", metrics.BytesDownloaded)
			fmt.Printf("avg latency: %s\n", metrics.AverageLatency)
			if metrics.LastError != "" {
				fmt.Printf("last error: %s (%s)\n", metrics.LastError, metrics.LastErrorTime.Format(time.RFC3339))
			}

			if !report.Healthy {
				os.Exit(1)
			}
			return nil
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	root.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "corefs-stat:", err)
		os.Exit(1)
	}
}
