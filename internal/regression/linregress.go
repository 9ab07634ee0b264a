package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"sealevel/pkg/contracts/domain"
)

var (
	// ErrInsufficientData is returned for fewer than two observations
	ErrInsufficientData = errors.New("at least two observations are required")
	// ErrLengthMismatch is returned when x and y differ in length
	ErrLengthMismatch = errors.New("x and y must have the same length")
	// ErrDegenerate is returned when every x value is identical
	ErrDegenerate = errors.New("cannot fit a line when all years are identical")
	// ErrNonFinite is returned when an input contains NaN or Inf
	ErrNonFinite = errors.New("inputs must be finite")
)

// tiny keeps the t statistic finite when |r| is exactly 1
const tiny = 1e-20

// Fit computes the least squares line ys = Slope*xs + Intercept
func Fit(xs, ys []float64) (domain.Fit, error) {
	if len(xs) != len(ys) {
		return domain.Fit{}, fmt.Errorf("%w: %d years, %d levels", ErrLengthMismatch, len(xs), len(ys))
	}
	n := len(xs)
	if n < 2 {
		return domain.Fit{}, fmt.Errorf("%w: got %d", ErrInsufficientData, n)
	}
	for i := range xs {
		if !finite(xs[i]) || !finite(ys[i]) {
			return domain.Fit{}, fmt.Errorf("%w: observation %d", ErrNonFinite, i)
		}
	}

	xMean, xVar := stat.MeanVariance(xs, nil)
	_, yVar := stat.MeanVariance(ys, nil)
	if xVar == 0 {
		return domain.Fit{}, ErrDegenerate
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	r := 0.0
	if yVar != 0 {
		r = clamp(stat.Correlation(xs, ys, nil), -1, 1)
	}

	fit := domain.Fit{
		Slope:     slope,
		Intercept: intercept,
		RValue:    r,
		RSquared:  r * r,
		N:         n,
	}

	if n == 2 {
		// A line through two points is exact; only the flat case is insignificant.
		if ys[0] == ys[1] {
			fit.PValue = 1
		}
		return fit, nil
	}

	df := float64(n - 2)
	t := r * math.Sqrt(df/((1-r+tiny)*(1+r+tiny)))
	fit.PValue = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))

	// Population second moments, matching a bias=1 covariance matrix
	nf := float64(n)
	ssxm := xVar * (nf - 1) / nf
	ssym := yVar * (nf - 1) / nf
	fit.StdErr = math.Sqrt((1 - r*r) * ssym / ssxm / df)
	fit.InterceptStdErr = fit.StdErr * math.Sqrt(ssxm+xMean*xMean)

	return fit, nil
}

// FitDataset fits every observation of ds
func FitDataset(ds *domain.Dataset) (domain.Fit, error) {
	if ds == nil {
		return domain.Fit{}, fmt.Errorf("%w: got 0", ErrInsufficientData)
	}
	xs, ys := ds.XY()
	return Fit(xs, ys)
}

// Trend evaluates fit at every whole year of r, inclusive
func Trend(fit domain.Fit, r domain.YearRange) []domain.TrendPoint {
	years := r.Years()
	points := make([]domain.TrendPoint, len(years))
	for i, y := range years {
		x := float64(y)
		points[i] = domain.TrendPoint{Year: x, Level: fit.Predict(x)}
	}
	return points
}

// Residuals returns observed minus fitted level for each observation
func Residuals(fit domain.Fit, obs []domain.Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Level - fit.Predict(o.Year)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
