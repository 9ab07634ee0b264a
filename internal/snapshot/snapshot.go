// Package snapshot captures the rendered page in headless Chrome.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	apperrors "sealevel/internal/errors"
	"sealevel/pkg/contracts/domain"
)

// ChartSelector is the element the page renders once a chart is shown
const ChartSelector = "#chart"

// Options configures the browser
type Options struct {
	BaseURL  string
	Headless bool
	Timeout  time.Duration
	Width    int
	Height   int
}

// DefaultOptions targets a local server
func DefaultOptions() Options {
	return Options{
		BaseURL:  "http://localhost:8080",
		Headless: true,
		Timeout:  30 * time.Second,
		Width:    1024,
		Height:   768,
	}
}

// browseFunc loads target and returns a full page PNG
type browseFunc func(ctx context.Context, opts Options, target string, logger *slog.Logger) ([]byte, error)

// Snapshotter takes screenshots of the page for a dataset and range
type Snapshotter struct {
	opts   Options
	logger *slog.Logger
	browse browseFunc
}

// New creates a Snapshotter
func New(opts Options, logger *slog.Logger) *Snapshotter {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = defaults.Width, defaults.Height
	}
	return &Snapshotter{
		opts:   opts,
		logger: logger.With(slog.String("component", "snapshot")),
		browse: browseChrome,
	}
}

// PageURL returns the page address for req
func PageURL(base string, req domain.ChartRequest) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("invalid base URL %q", base))
	}
	q := url.Values{}
	if req.DatasetID != "" {
		q.Set("dataset", req.DatasetID)
	}
	q.Set("start", strconv.Itoa(req.Start))
	q.Set("end", strconv.Itoa(req.End))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Capture returns a PNG screenshot of the page showing req
func (s *Snapshotter) Capture(ctx context.Context, req domain.ChartRequest) ([]byte, error) {
	target, err := PageURL(s.opts.BaseURL, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	png, err := s.browse(ctx, s.opts, target, s.logger)
	if err != nil {
		return nil, apperrors.NewNetworkError("capture "+target, err)
	}
	s.logger.InfoContext(ctx, "snapshot captured",
		slog.String("url", target),
		slog.Int("bytes", len(png)),
		slog.Duration("duration", time.Since(start)))
	return png, nil
}

// Save captures req and writes the PNG to path
func (s *Snapshotter) Save(ctx context.Context, req domain.ChartRequest, path string) error {
	png, err := s.Capture(ctx, req)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create snapshot directory", err)
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return apperrors.NewStorageError("write snapshot", err)
	}
	return nil
}

func browseChrome(ctx context.Context, opts Options, target string, logger *slog.Logger) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var png []byte
	err := chromedp.Run(browserCtx,
		timedAction("navigate", logger, chromedp.Navigate(target)),
		timedAction("wait for chart", logger, chromedp.WaitVisible(ChartSelector, chromedp.ByQuery)),
		timedAction("screenshot", logger, chromedp.FullScreenshot(&png, 100)),
	)
	if err != nil {
		return nil, err
	}
	return png, nil
}

func timedAction(name string, logger *slog.Logger, act chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		start := time.Now()
		err := act.Do(ctx)
		logger.DebugContext(ctx, "browser step",
			slog.String("step", name),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("ok", err == nil))
		return err
	})
}
