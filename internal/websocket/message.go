package websocket

import (
	"context"
	"encoding/base64"
	"time"

	"sealevel/pkg/contracts/domain"
)

// Message types exchanged with browser clients
const (
	TypeConnection = "connection"
	TypeHeartbeat  = "heartbeat"
	TypeRange      = "range"
	TypeChart      = "chart"
	TypeError      = "error"
)

// ChartProvider renders a chart view for a range request
type ChartProvider interface {
	Chart(ctx context.Context, req domain.ChartRequest) (*domain.ChartView, error)
}

// Message is the envelope for every server to client frame
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// NewMessage stamps a message with the current time
func NewMessage(messageType string, data interface{}) Message {
	return Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// inbound is a client to server frame
type inbound struct {
	Type    string `json:"type"`
	Dataset string `json:"dataset,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Format  string `json:"format,omitempty"`
}

func (in inbound) chartRequest() domain.ChartRequest {
	format := in.Format
	if format == "" {
		format = domain.FormatPNG
	}
	return domain.ChartRequest{
		DatasetID: in.Dataset,
		Start:     in.Start,
		End:       in.End,
		Format:    format,
	}
}

// ChartPayload is a chart view with the image inlined as a data URL
type ChartPayload struct {
	domain.ChartView
	Image string `json:"image"`
}

// NewChartPayload converts a rendered view for transmission over the socket
func NewChartPayload(view *domain.ChartView) ChartPayload {
	payload := ChartPayload{ChartView: *view}
	payload.ChartView.Image = nil
	if len(view.Image) > 0 {
		payload.Image = "data:" + view.ContentType + ";base64," + base64.StdEncoding.EncodeToString(view.Image)
	}
	return payload
}

// ErrorPayload describes a request the server could not satisfy
type ErrorPayload struct {
	Message string `json:"message"`
}
