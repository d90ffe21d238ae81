// Package pipeline wires the data sources, the transform engine and the
// workbook writer into the export jobs exposed by the CLI. Every job is a
// linear sequence of stages executed by a Runner.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zipGajun/FAGA-DATA/internal/config"
	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/exporter"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/retry"
	"github.com/zipGajun/FAGA-DATA/internal/sources/bls"
	"github.com/zipGajun/FAGA-DATA/internal/sources/fred"
	"github.com/zipGajun/FAGA-DATA/internal/sources/yahoo"
	"github.com/zipGajun/FAGA-DATA/internal/upstream"
)

// Env carries the dependencies shared by every job. Only Config is
// required.
type Env struct {
	Config     *config.Config
	Logger     *slog.Logger
	Telemetry  *infrastructure.Telemetry
	HTTPClient *http.Client
	Sleeper    retry.Sleeper
	Now        func() time.Time
}

// Result describes a written workbook.
type Result struct {
	Path    string
	Sheets  []string
	Records int
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return infrastructure.GetLogger()
}

func (e *Env) upstream(name string, rps float64) *upstream.Client {
	cfg := e.Config
	opts := []upstream.Option{
		upstream.WithLogger(e.logger()),
		upstream.WithMetrics(metrics(e.Telemetry)),
	}
	if e.HTTPClient != nil {
		opts = append(opts, upstream.WithHTTPClient(e.HTTPClient))
	}
	if e.Sleeper != nil {
		opts = append(opts, upstream.WithSleeper(e.Sleeper))
	}
	return upstream.New(upstream.Config{
		Name:    name,
		Timeout: cfg.Retry.HTTPTimeout,
		Policy: retry.Policy{
			MaxAttempts: cfg.Retry.Attempts,
			Base:        cfg.Retry.Backoff,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		RequestsPerSecond: rps,
		BreakerFailures:   cfg.Breaker.ConsecutiveFailures,
		BreakerTimeout:    cfg.Breaker.OpenTimeout,
	}, opts...)
}

func (e *Env) blsClient() *bls.Client {
	c := e.Config
	return bls.NewClient(bls.ClientConfig{
		Endpoint:    c.BLS.Endpoint,
		APIKey:      c.BLSAPIKey,
		BatchSize:   c.BLS.BatchSize,
		Concurrency: c.BLS.Concurrency,
		MaxYearSpan: c.BLS.MaxYearSpan,
	}, e.upstream("bls", c.BLS.RequestsPerSecond), e.logger())
}

func (e *Env) fredClient() *fred.Client {
	c := e.Config
	return fred.NewClient(fred.ClientConfig{
		Endpoint:      c.FRED.Endpoint,
		GraphEndpoint: c.FRED.GraphEndpoint,
		APIKey:        c.FREDAPIKey,
	}, e.upstream("fred", c.FRED.RequestsPerSecond), e.logger())
}

func (e *Env) yahooClient() *yahoo.Client {
	c := e.Config
	return yahoo.NewClient(yahoo.ClientConfig{
		Endpoint:  c.Yahoo.Endpoint,
		UserAgent: c.Yahoo.UserAgent,
	}, e.upstream("yahoo", c.Yahoo.RequestsPerSecond), e.logger())
}

func (e *Env) workbook() *exporter.Workbook {
	return exporter.NewWorkbook(
		exporter.WithSheetPrefix(e.Config.Output.SheetPrefix),
		exporter.WithLogger(e.logger()),
		exporter.WithMetrics(metrics(e.Telemetry)),
	)
}

// outputPath resolves <output dir>/<prefix>_<YYYYMMDD>.xlsx.
func (e *Env) outputPath(prefix string) (string, error) {
	paths, err := config.GetPaths(e.Config)
	if err != nil {
		return "", apperrors.NewIOError("failed to resolve output directory", err)
	}
	return paths.OutputFile(prefix, e.now()), nil
}

// writeStage saves wb under prefix and fills out. records is read when
// the stage runs.
func (e *Env) writeStage(wb *exporter.Workbook, prefix string, records *int, out *Result) Stage {
	return Stage{ID: "write", Run: func(ctx context.Context) error {
		path, err := e.outputPath(prefix)
		if err != nil {
			return err
		}
		if err := wb.Save(ctx, path); err != nil {
			return err
		}
		*out = Result{Path: path, Sheets: wb.SheetNames(), Records: *records}
		return nil
	}}
}
