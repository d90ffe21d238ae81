package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/zipGajun/FAGA-DATA/internal/config"
	"github.com/zipGajun/FAGA-DATA/pkg/contracts"
)

const (
	ServiceVersion = contracts.Version
	MeterName      = "github.com/zipGajun/FAGA-DATA"
)

// Telemetry holds the tracer and meter used by a run. With telemetry
// disabled both are no-ops and Shutdown only returns nil.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prometheus.Registry
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *PipelineMetrics

	metricsFile string
	traceFile   *os.File
	logger      *slog.Logger
}

// PipelineMetrics are the instruments recorded by the export stages.
type PipelineMetrics struct {
	UpstreamAttempts metric.Int64Counter
	UpstreamRetries  metric.Int64Counter
	UpstreamFailures metric.Int64Counter
	RecordsParsed    metric.Int64Counter
	RowsWritten      metric.Int64Counter
	StageDuration    metric.Float64Histogram
}

// InitTelemetry wires tracing to a stdouttrace exporter writing
// cfg.TraceFile and metrics to a private Prometheus registry that is dumped
// to cfg.MetricsFile on Shutdown.
func InitTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	t := &Telemetry{logger: logger}

	if !cfg.Enabled {
		t.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
		t.Meter = metricnoop.NewMeterProvider().Meter(MeterName)
		metrics, err := createPipelineMetrics(t.Meter)
		if err != nil {
			return nil, err
		}
		t.Metrics = metrics
		return t, nil
	}

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.TraceFile != "" {
		if err := t.initializeTracing(cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	} else {
		t.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
	}

	if err := t.initializeMetrics(cfg, res); err != nil {
		t.closeTraceFile()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.Info("telemetry initialized",
		slog.String("trace_file", cfg.TraceFile),
		slog.String("metrics_file", cfg.MetricsFile))
	return t, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg config.TelemetryConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "faga-data"
	}
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", hostname),
	), nil
}

func (t *Telemetry) initializeTracing(cfg config.TelemetryConfig, res *resource.Resource) error {
	f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Runs are short; a syncer flushes every span as it ends.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	t.traceFile = f
	t.TracerProvider = tp
	t.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
	return nil
}

func (t *Telemetry) initializeMetrics(cfg config.TelemetryConfig, res *resource.Resource) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.Registry = reg
	t.MeterProvider = mp
	t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))
	t.metricsFile = cfg.MetricsFile

	metrics, err := createPipelineMetrics(t.Meter)
	if err != nil {
		return err
	}
	t.Metrics = metrics
	return nil
}

func createPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)
	if m.UpstreamAttempts, err = meter.Int64Counter("faga_upstream_attempts",
		metric.WithDescription("Upstream HTTP calls attempted")); err != nil {
		return nil, err
	}
	if m.UpstreamRetries, err = meter.Int64Counter("faga_upstream_retries",
		metric.WithDescription("Upstream calls retried after a failure")); err != nil {
		return nil, err
	}
	if m.UpstreamFailures, err = meter.Int64Counter("faga_upstream_failures",
		metric.WithDescription("Upstream calls that failed after all attempts")); err != nil {
		return nil, err
	}
	if m.RecordsParsed, err = meter.Int64Counter("faga_records_parsed",
		metric.WithDescription("Observation records parsed from upstream payloads")); err != nil {
		return nil, err
	}
	if m.RowsWritten, err = meter.Int64Counter("faga_rows_written",
		metric.WithDescription("Rows written to workbook sheets")); err != nil {
		return nil, err
	}
	if m.StageDuration, err = meter.Float64Histogram("faga_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordStage records a stage duration with its outcome.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordAttempt counts one upstream attempt for source.
func (m *PipelineMetrics) RecordAttempt(ctx context.Context, source string, retry bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.UpstreamAttempts.Add(ctx, 1, attrs)
	if retry {
		m.UpstreamRetries.Add(ctx, 1, attrs)
	}
}

// RecordFailure counts an upstream call that exhausted its retries.
func (m *PipelineMetrics) RecordFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.UpstreamFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordRecords counts parsed records for source.
func (m *PipelineMetrics) RecordRecords(ctx context.Context, source string, n int) {
	if m == nil {
		return
	}
	m.RecordsParsed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

// RecordRows counts rows written to sheet.
func (m *PipelineMetrics) RecordRows(ctx context.Context, sheet string, n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(ctx, int64(n), metric.WithAttributes(attribute.String("sheet", sheet)))
}

// StartSpan starts a span on the run tracer.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.Tracer == nil {
		return tracenoop.NewTracerProvider().Tracer(MeterName).Start(ctx, name)
	}
	return t.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes spans, writes the metrics textfile and releases files.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	t.closeTraceFile()

	if t.Registry != nil && t.metricsFile != "" {
		if err := prometheus.WriteToTextfile(t.metricsFile, t.Registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}

	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}
	return nil
}

func (t *Telemetry) closeTraceFile() {
	if t.traceFile != nil {
		t.traceFile.Close()
		t.traceFile = nil
	}
}
