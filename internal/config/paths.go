package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths contains the resolved filesystem locations used by a run.
type Paths struct {
	WorkingDir string
	OutputDir  string
	LogsDir    string
}

// GetPaths resolves the configured directories against the working
// directory. Absolute paths are kept as-is.
func GetPaths(cfg *Config) (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	resolve := func(p string) string {
		if p == "" {
			return wd
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(wd, p)
	}

	return &Paths{
		WorkingDir: wd,
		OutputDir:  resolve(cfg.Output.Dir),
		LogsDir:    resolve(filepath.Dir(cfg.Logging.FilePath)),
	}, nil
}

// OutputFile returns <OutputDir>/<prefix>_<YYYYMMDD>.xlsx for the given day.
func (p *Paths) OutputFile(prefix string, day time.Time) string {
	return filepath.Join(p.OutputDir, OutputFileName(prefix, day))
}

// OutputFileName returns <prefix>_<YYYYMMDD>.xlsx.
func OutputFileName(prefix string, day time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "export"
	}
	return fmt.Sprintf("%s_%s.xlsx", prefix, day.Format("20060102"))
}
