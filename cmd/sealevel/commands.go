package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sealevel/internal/app"
	"sealevel/internal/config"
	"sealevel/internal/infrastructure"
	"sealevel/internal/services"
	"sealevel/pkg/contracts"
	"sealevel/pkg/contracts/domain"
)

// rootOptions holds the persistent flags
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "sealevel",
		Short: "Fit, chart and export global sea level measurements",
		Long: `sealevel serves an interactive chart of a sea level record in the EPA
column layout with a least squares trend extended to 2050. The same
analysis is available from the command line for scripting.`,
		Version:       contracts.FullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: search sealevel.yaml, configs/sealevel.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newFitCmd(opts),
		newExportCmd(opts),
		newSnapshotCmd(opts),
	)
	return root
}

// loadConfig applies --config and --log-level on top of config.Load
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// cliEnv is what the offline commands share
type cliEnv struct {
	cfg     *config.Config
	paths   *config.Paths
	logger  *slog.Logger
	service *services.SeaLevelService
}

// newCLIEnv builds the service stack with logs on stderr so stdout stays
// usable for command output
func (o *rootOptions) newCLIEnv(cmd *cobra.Command) (*cliEnv, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := infrastructure.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.Logging)

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}
	svc, err := app.NewSeaLevelService(cmd.Context(), cfg, paths, nil, nil, nil, logger)
	if err != nil {
		return nil, err
	}
	return &cliEnv{cfg: cfg, paths: paths, logger: logger, service: svc}, nil
}

// resolveDataset loads file as an upload, or returns the default dataset
func (e *cliEnv) resolveDataset(ctx context.Context, file string) (*domain.Dataset, error) {
	if file == "" {
		return e.service.Default(ctx)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return e.service.Upload(ctx, filepath.Base(file), f)
}

func (e *cliEnv) close() {
	e.service.Close()
}

// rangeFlags are the slider positions shared by export and snapshot
type rangeFlags struct {
	start int
	end   int
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&r.start, "start", domain.StartYearDefault,
		fmt.Sprintf("first year shown (%d-%d)", domain.StartYearMin, domain.StartYearMax))
	cmd.Flags().IntVar(&r.end, "end", domain.EndYearDefault,
		fmt.Sprintf("last year shown (%d-%d)", domain.EndYearMin, domain.EndYearMax))
}

func (r *rangeFlags) request(datasetID string) domain.ChartRequest {
	req := domain.DefaultChartRequest()
	req.DatasetID = datasetID
	req.Start = r.start
	req.End = r.end
	return req
}

func writeLine(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}
