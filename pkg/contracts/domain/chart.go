package domain

// Chart output formats
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// EventDatasetLoaded is the websocket message type announcing a new dataset
const EventDatasetLoaded = "dataset:loaded"

// ChartRequest selects a dataset, a visible year range and an image format
type ChartRequest struct {
	DatasetID string `json:"dataset,omitempty" validate:"omitempty,max=64"`
	Start     int    `json:"start" validate:"gte=1880,lte=2020,ltefield=End"`
	End       int    `json:"end" validate:"gte=1980,lte=2051"`
	Format    string `json:"format,omitempty" validate:"omitempty,oneof=png svg"`
}

// Range returns the requested year range
func (r ChartRequest) Range() YearRange {
	return YearRange{Start: r.Start, End: r.End}
}

// DefaultChartRequest returns a request for the default dataset and slider positions
func DefaultChartRequest() ChartRequest {
	return ChartRequest{
		Start:  StartYearDefault,
		End:    EndYearDefault,
		Format: FormatPNG,
	}
}

// Hotspot is a tooltip target in image pixel space (origin top-left)
type Hotspot struct {
	Year   float64 `json:"year"`
	Level  float64 `json:"level"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Radius int     `json:"r"`
	Label  string  `json:"label"`
}

// ChartView is a rendered chart together with the numbers behind it
type ChartView struct {
	DatasetID   string        `json:"dataset"`
	Range       YearRange     `json:"range"`
	Fit         Fit           `json:"fit"`
	Trend       []TrendPoint  `json:"trend"`
	Visible     []Observation `json:"visible"`
	Image       []byte        `json:"image,omitempty"`
	ContentType string        `json:"content_type"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Hotspots    []Hotspot     `json:"hotspots"`
}
