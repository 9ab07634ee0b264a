package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Paths contains all resolved application paths.
// Relative entries in PathsConfig are anchored at BaseDir, which defaults to
// the working directory.
type Paths struct {
	BaseDir      string
	DataDir      string
	ExportsDir   string
	SnapshotsDir string
	LogsDir      string
	SampleFile   string
}

// ResolvePaths resolves the configured paths against the base directory
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", base, err)
	}

	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(abs, p)
	}

	return &Paths{
		BaseDir:      abs,
		DataDir:      anchor(c.Paths.DataDir),
		ExportsDir:   anchor(c.Paths.ExportsDir),
		SnapshotsDir: anchor(c.Paths.SnapshotsDir),
		LogsDir:      anchor(c.Paths.LogsDir),
		SampleFile:   anchor(c.Data.SampleFile),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ExportsDir,
		p.SnapshotsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// ExportPath returns a timestamped file path inside the exports directory
func (p *Paths) ExportPath(prefix, ext string, now time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), ext)
	return filepath.Join(p.ExportsDir, name)
}

// SnapshotPath returns a timestamped PNG path inside the snapshots directory
func (p *Paths) SnapshotPath(now time.Time) string {
	return filepath.Join(p.SnapshotsDir, fmt.Sprintf("sealevel_%s.png", now.Format("20060102_150405")))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("exports", p.ExportsDir),
			slog.String("snapshots", p.SnapshotsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.String("sample_file", p.SampleFile))
}
