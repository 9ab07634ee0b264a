package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sealevel/internal/infrastructure"
	"sealevel/internal/snapshot"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var (
		baseURL   string
		datasetID string
		out       string
		timeout   time.Duration
		headful   bool
		rng       rangeFlags
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Screenshot the running web page in headless Chrome",
		Long: `snapshot opens the page of a running "sealevel serve" for the given range,
waits for the chart and saves a full page PNG. Chrome or Chromium must be
installed.`,
		Example: `  sealevel snapshot --start 1950 --end 2050
  sealevel snapshot --url http://localhost:9000 --out chart.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := infrastructure.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.Logging)

			if baseURL == "" {
				baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			}
			if out == "" {
				paths, err := cfg.ResolvePaths()
				if err != nil {
					return err
				}
				out = paths.SnapshotPath(time.Now())
			}

			shooter := snapshot.New(snapshot.Options{
				BaseURL:  baseURL,
				Headless: !headful,
				Timeout:  timeout,
			}, logger)
			if err := shooter.Save(cmd.Context(), rng.request(datasetID), out); err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "%s", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "page address (default http://localhost:<server.port>)")
	cmd.Flags().StringVar(&datasetID, "dataset", "", "dataset id (default dataset when empty)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG path (default a timestamped file in the snapshots directory)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	rng.register(cmd)
	return cmd
}
