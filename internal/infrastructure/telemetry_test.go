package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipGajun/FAGA-DATA/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInitTelemetry_Disabled(t *testing.T) {
	tel, err := InitTelemetry(config.TelemetryConfig{}, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, tel.Metrics)

	ctx, span := tel.StartSpan(context.Background(), "noop")
	tel.Metrics.RecordStage(ctx, "noop", time.Millisecond, nil)
	span.End()

	assert.Nil(t, tel.Registry)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInitTelemetry_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "faga-test",
		TraceFile:   filepath.Join(dir, "trace.json"),
		MetricsFile: filepath.Join(dir, "metrics.prom"),
	}

	tel, err := InitTelemetry(cfg, discardLogger())
	require.NoError(t, err)

	ctx, span := tel.StartSpan(context.Background(), "fetch")
	tel.Metrics.RecordAttempt(ctx, "bls", false)
	tel.Metrics.RecordAttempt(ctx, "bls", true)
	tel.Metrics.RecordRecords(ctx, "bls", 24)
	tel.Metrics.RecordStage(ctx, "fetch", 250*time.Millisecond, errors.New("boom"))
	RecordError(ctx, errors.New("boom"))
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))

	traces, err := os.ReadFile(cfg.TraceFile)
	require.NoError(t, err)
	assert.Contains(t, string(traces), `"Name":"fetch"`)

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "faga_upstream_attempts")
	assert.Contains(t, string(metrics), "faga_records_parsed")
	assert.Contains(t, string(metrics), "faga_stage_duration_seconds")
}

func TestPipelineMetrics_NilSafe(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()
	m.RecordStage(ctx, "x", time.Second, nil)
	m.RecordAttempt(ctx, "x", true)
	m.RecordFailure(ctx, "x")
	m.RecordRecords(ctx, "x", 1)
	m.RecordRows(ctx, "x", 1)
}
