package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apperrors "sealevel/internal/errors"
	"sealevel/pkg/contracts/domain"
)

// ValuesGetter fetches a rectangular range of cell values
type ValuesGetter interface {
	GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
}

// SheetsConfig identifies the spreadsheet range holding the table
type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	APIKey          string
}

// SheetsSource loads datasets from a Google Sheets range
type SheetsSource struct {
	cfg    SheetsConfig
	getter ValuesGetter
	loader *Loader
	logger *slog.Logger
}

// sheetsAPI adapts *sheets.Service to ValuesGetter
type sheetsAPI struct {
	svc *sheets.Service
}

func (a *sheetsAPI) GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// NewSheetsService builds a Sheets API client from a credentials file or API key
func NewSheetsService(ctx context.Context, cfg SheetsConfig) (ValuesGetter, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsReadonlyScope))

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewConfigError("create sheets service", err)
	}
	return &sheetsAPI{svc: svc}, nil
}

// NewSheetsSource creates a source that reads cfg.Range through getter
func NewSheetsSource(cfg SheetsConfig, getter ValuesGetter, loader *Loader, logger *slog.Logger) *SheetsSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsSource{
		cfg:    cfg,
		getter: getter,
		loader: loader,
		logger: logger.With(slog.String("component", "sheets_source")),
	}
}

// Enabled reports whether a spreadsheet is configured
func (s *SheetsSource) Enabled() bool {
	return s != nil && s.cfg.SpreadsheetID != "" && s.getter != nil
}

// Load fetches the configured range and parses it
func (s *SheetsSource) Load(ctx context.Context) (*domain.Dataset, error) {
	if !s.Enabled() {
		return nil, apperrors.NewConfigError("load from sheets", ErrSheetsDisabled)
	}

	values, err := s.getter.GetValues(ctx, s.cfg.SpreadsheetID, s.cfg.Range)
	if err != nil {
		s.logger.ErrorContext(ctx, "sheets fetch failed",
			slog.String("spreadsheet_id", s.cfg.SpreadsheetID),
			slog.String("range", s.cfg.Range),
			slog.String("error", err.Error()))
		return nil, apperrors.NewNetworkError("fetch spreadsheet values", err)
	}

	records := make([][]string, len(values))
	for i, row := range values {
		rec := make([]string, len(row))
		for j, cell := range row {
			rec[j] = strings.TrimSpace(fmt.Sprint(cell))
		}
		records[i] = rec
	}

	name := fmt.Sprintf("%s!%s", s.cfg.SpreadsheetID, s.cfg.Range)
	return s.loader.FromRecords(name, domain.SourceSheets, records, "")
}
