package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"sealevel/pkg/contracts/domain"
)

// fitOutput is the --json form of the fit command
type fitOutput struct {
	Dataset        string     `json:"dataset"`
	Observations   int        `json:"observations"`
	DroppedRows    int        `json:"dropped_rows"`
	Fit            domain.Fit `json:"fit"`
	PredictionYear int        `json:"prediction_year"`
	Predicted      float64    `json:"predicted_level"`
}

func newFitCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		year   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Print the least squares trend of a dataset",
		Example: `  sealevel fit
  sealevel fit --file my-levels.csv --year 2100 --json`,
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
			fit, err := env.service.FitFor(cmd.Context(), ds.ID)
			if err != nil {
				return err
			}

			out := fitOutput{
				Dataset:        ds.Name,
				Observations:   ds.Len(),
				DroppedRows:    ds.DroppedRows,
				Fit:            fit,
				PredictionYear: year,
				Predicted:      fit.Predict(float64(year)),
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			first, last := ds.YearSpan()
			writeLine(w, "Dataset:     %s (%d observations, %.0f-%.0f)", out.Dataset, out.Observations, first, last)
			if out.DroppedRows > 0 {
				writeLine(w, "Dropped:     %d rows without a usable year or level", out.DroppedRows)
			}
			writeLine(w, "Slope:       %.4f in/year", fit.Slope)
			writeLine(w, "Intercept:   %.4f in", fit.Intercept)
			writeLine(w, "R squared:   %.4f", fit.RSquared)
			writeLine(w, "p-value:     %.3g", fit.PValue)
			writeLine(w, "Level %d:  %.2f in", year, out.Predicted)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX file to fit instead of the default dataset")
	cmd.Flags().IntVar(&year, "year", 2050, "year to predict")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
