package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
)

// Runner executes the stages of one job sequentially. The first failure
// stops the job; the remaining stages are marked skipped.
type Runner struct {
	job       string
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
	states    []*StepState
}

// NewRunner returns a Runner for job.
func NewRunner(job string, tel *infrastructure.Telemetry, logger *slog.Logger) *Runner {
	return &Runner{
		job:       job,
		logger:    infrastructure.WithComponent(logger, "pipeline").With(slog.String("job", job)),
		telemetry: tel,
	}
}

// States returns the state of every stage of the last Run.
func (r *Runner) States() []*StepState { return r.states }

// Run executes stages in order.
func (r *Runner) Run(ctx context.Context, stages ...Stage) error {
	ctx = infrastructure.EnsureRunID(ctx)
	ctx, span := r.telemetry.StartSpan(ctx, "job."+r.job,
		attribute.String("job", r.job),
		attribute.String("run_id", infrastructure.GetRunID(ctx)))
	defer span.End()

	r.states = make([]*StepState, len(stages))
	for i, s := range stages {
		r.states[i] = NewStepState(s.ID)
	}

	start := time.Now()
	r.logger.InfoContext(ctx, "job_start", slog.Int("stage_count", len(stages)))

	for i, s := range stages {
		state := r.states[i]
		if err := ctx.Err(); err != nil {
			r.skipFrom(i, "job cancelled")
			r.logger.WarnContext(ctx, "job_cancelled", slog.String("stage", s.ID))
			infrastructure.RecordError(ctx, err)
			return fmt.Errorf("%s cancelled before %s: %w", r.job, s.ID, err)
		}

		if err := r.runStage(ctx, s, state); err != nil {
			r.skipFrom(i+1, fmt.Sprintf("previous stage %s failed", s.ID))
			infrastructure.RecordError(ctx, err)
			infrastructure.WithError(r.logger, err).ErrorContext(ctx, "job_failed",
				slog.String("stage", s.ID),
				slog.Duration("duration", time.Since(start)))
			return err
		}
	}

	r.logger.InfoContext(ctx, "job_complete", slog.Duration("duration", time.Since(start)))
	return nil
}

func (r *Runner) runStage(ctx context.Context, s Stage, state *StepState) error {
	ctx, span := r.telemetry.StartSpan(ctx, "stage."+s.ID, attribute.String("stage", s.ID))
	defer span.End()

	r.logger.DebugContext(ctx, "stage_start", slog.String("stage", s.ID))
	state.Start()
	err := s.Run(ctx)
	if err != nil {
		err = stampStage(err, s.ID)
		state.Fail(err)
		infrastructure.RecordError(ctx, err)
	} else {
		state.Complete()
	}
	metrics(r.telemetry).RecordStage(ctx, s.ID, state.Duration(), err)

	if err != nil {
		infrastructure.WithError(r.logger, err).ErrorContext(ctx, "stage_error",
			slog.String("stage", s.ID),
			slog.String("kind", string(apperrors.KindOf(err))))
		return err
	}
	r.logger.InfoContext(ctx, "stage_complete",
		slog.String("stage", s.ID),
		slog.Duration("duration", state.Duration()))
	return nil
}

func (r *Runner) skipFrom(i int, reason string) {
	for ; i < len(r.states); i++ {
		r.states[i].Skip(reason)
	}
}

// stampStage records the failing stage on pipeline errors that lack one.
func stampStage(err error, stage string) error {
	if pe, ok := err.(*apperrors.PipelineError); ok && pe.Stage == "" {
		return pe.WithStage(stage)
	}
	return err
}

func metrics(t *infrastructure.Telemetry) *infrastructure.PipelineMetrics {
	if t == nil {
		return nil
	}
	return t.Metrics
}
