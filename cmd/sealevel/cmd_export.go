package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sealevel/internal/exporter"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		format string
		out    string
		rng    rangeFlags
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write observations, trend and fit as CSV or Excel",
		Long: `export writes one row per year with the observed level, the fitted level
and the residual. Without --out the file is saved in the exports directory.`,
		Example: `  sealevel export --format xlsx
  sealevel export --start 1900 --end 2050 --out - > levels.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.newCLIEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ds, err := env.resolveDataset(cmd.Context(), file)
			if err != nil {
				return err
			}
			req := rng.request(ds.ID)
			format = strings.ToLower(format)

			if out == "-" {
				_, err := env.service.Export(cmd.Context(), req, format, cmd.OutOrStdout())
				return err
			}
			if out == "" {
				if err := env.paths.EnsureDirectories(); err != nil {
					return err
				}
				path, err := env.service.SaveExport(cmd.Context(), req, format)
				if err != nil {
					return err
				}
				writeLine(cmd.OutOrStdout(), "%s", path)
				return nil
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			res, err := env.service.Export(cmd.Context(), req, format, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(out)
				return err
			}
			writeLine(cmd.OutOrStdout(), "%s (%d rows)", out, res.Rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX file to export instead of the default dataset")
	cmd.Flags().StringVar(&format, "format", exporter.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output path, "-" for stdout`)
	rng.register(cmd)
	return cmd
}
