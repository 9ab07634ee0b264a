package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	apperrors "sealevel/internal/errors"
	"sealevel/pkg/contracts/domain"
)

// Labels match the published chart
const (
	Title  = "Rise in Sea Level"
	XLabel = "Year"
	YLabel = "Sea Level (inches)"
)

// Content types of the supported formats
const (
	ContentTypePNG = "image/png"
	ContentTypeSVG = "image/svg+xml"
)

var (
	pointColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	trendColor = color.RGBA{R: 255, A: 255}
)

// Options controls the output size
type Options struct {
	WidthInches  float64
	HeightInches float64
	DPI          int
	PointRadius  float64
}

// DefaultOptions returns an 8x5 inch chart at screen resolution
func DefaultOptions() Options {
	return Options{WidthInches: 8, HeightInches: 5, DPI: 96, PointRadius: 2.5}
}

// Input is everything needed to draw one chart
type Input struct {
	// Observations is the full dataset. Only those inside Range are drawn,
	// but all of them contribute to the vertical scale.
	Observations []domain.Observation
	Trend        []domain.TrendPoint
	Range        domain.YearRange
}

// Result is an encoded chart
type Result struct {
	Image       []byte
	ContentType string
	Width       int
	Height      int
	Hotspots    []domain.Hotspot
}

// Renderer draws charts with fixed options
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer, filling unset options with defaults
func NewRenderer(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.WidthInches <= 0 {
		opts.WidthInches = def.WidthInches
	}
	if opts.HeightInches <= 0 {
		opts.HeightInches = def.HeightInches
	}
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.PointRadius <= 0 {
		opts.PointRadius = def.PointRadius
	}
	return &Renderer{opts: opts}
}

// Options returns the renderer's options
func (r *Renderer) Options() Options {
	return r.opts
}

// ContentType maps a format to its MIME type
func ContentType(format string) (string, error) {
	switch format {
	case domain.FormatPNG, "":
		return ContentTypePNG, nil
	case domain.FormatSVG:
		return ContentTypeSVG, nil
	default:
		return "", apperrors.NewUnsupportedFormatError(format)
	}
}

// Render draws in and encodes it as format ("png" or "svg")
func (r *Renderer) Render(in Input, format string) (*Result, error) {
	contentType, err := ContentType(format)
	if err != nil {
		return nil, err
	}
	if in.Range.End < in.Range.Start {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("start year %d is after end year %d", in.Range.Start, in.Range.End))
	}

	visible := Visible(in.Observations, in.Range)

	p, err := r.build(in, visible)
	if err != nil {
		return nil, apperrors.NewRenderError("build plot", err)
	}

	w := vg.Length(r.opts.WidthInches) * vg.Inch
	h := vg.Length(r.opts.HeightInches) * vg.Inch

	res := &Result{ContentType: contentType}
	var buf bytes.Buffer

	if contentType == ContentTypeSVG {
		c := vgsvg.New(w, h)
		dc := draw.New(c)
		p.Draw(dc)
		if _, err := c.WriteTo(&buf); err != nil {
			return nil, apperrors.NewRenderError("encode svg", err)
		}
		res.Width = int(math.Round(w.Points()))
		res.Height = int(math.Round(h.Points()))
		res.Hotspots = hotspots(p, dc, visible, 1, h.Points(), r.opts.PointRadius)
	} else {
		c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.opts.DPI))
		dc := draw.New(c)
		p.Draw(dc)
		if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
			return nil, apperrors.NewRenderError("encode png", err)
		}
		bounds := c.Image().Bounds()
		res.Width = bounds.Dx()
		res.Height = bounds.Dy()
		scale := float64(r.opts.DPI) / vg.Inch.Points()
		res.Hotspots = hotspots(p, dc, visible, scale, float64(res.Height)/scale, r.opts.PointRadius)
	}

	res.Image = buf.Bytes()
	return res, nil
}

// Visible returns the observations whose year lies inside rng
func Visible(obs []domain.Observation, rng domain.YearRange) []domain.Observation {
	out := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Year >= float64(rng.Start) && o.Year <= float64(rng.End) {
			out = append(out, o)
		}
	}
	return out
}

func (r *Renderer) build(in Input, visible []domain.Observation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = Title
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel
	p.Add(plotter.NewGrid())

	if len(visible) > 0 {
		pts := make(plotter.XYs, len(visible))
		for i, o := range visible {
			pts[i].X, pts[i].Y = o.Year, o.Level
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Color = pointColor
		sc.GlyphStyle.Radius = vg.Points(r.opts.PointRadius)
		p.Add(sc)
		p.Legend.Add("Observed", sc)
	}

	if len(in.Trend) > 0 {
		pts := make(plotter.XYs, len(in.Trend))
		for i, tp := range in.Trend {
			pts[i].X, pts[i].Y = tp.Year, tp.Level
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = trendColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("Trend", line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	p.X.Min, p.X.Max = float64(in.Range.Start), float64(in.Range.End)
	if p.X.Min == p.X.Max {
		p.X.Min -= 0.5
		p.X.Max += 0.5
	}
	p.Y.Min, p.Y.Max = levelBounds(in.Observations, in.Trend)

	return p, nil
}

// levelBounds spans every observation and trend point with a small margin
func levelBounds(obs []domain.Observation, trend []domain.TrendPoint) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, o := range obs {
		lo, hi = math.Min(lo, o.Level), math.Max(hi, o.Level)
	}
	for _, tp := range trend {
		lo, hi = math.Min(lo, tp.Level), math.Max(hi, tp.Level)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

// hotspots maps visible observations to output coordinates. scale converts
// points to output units and heightPts is the canvas height in points.
func hotspots(p *plot.Plot, dc draw.Canvas, visible []domain.Observation, scale, heightPts, radius float64) []domain.Hotspot {
	da := p.DataCanvas(dc)
	trX, trY := p.Transforms(&da)

	r := int(math.Ceil(radius*scale)) + 2
	out := make([]domain.Hotspot, 0, len(visible))
	for _, o := range visible {
		x := trX(o.Year).Points()
		y := trY(o.Level).Points()
		out = append(out, domain.Hotspot{
			Year:   o.Year,
			Level:  o.Level,
			X:      int(math.Round(x * scale)),
			Y:      int(math.Round((heightPts - y) * scale)),
			Radius: r,
			Label:  Label(o),
		})
	}
	return out
}

// Label is the tooltip text of an observation
func Label(o domain.Observation) string {
	return fmt.Sprintf("%g: %.2f in", o.Year, o.Level)
}
