package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
)

func TestRunner_RunsInOrder(t *testing.T) {
	var order []string
	step := func(id string) Stage {
		return Stage{ID: id, Run: func(ctx context.Context) error {
			assert.NotEmpty(t, infrastructure.GetRunID(ctx), "run id is set")
			order = append(order, id)
			return nil
		}}
	}

	r := NewRunner("test", nil, quietLogger())
	require.NoError(t, r.Run(context.Background(), step("a"), step("b"), step("c")))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	for _, s := range r.States() {
		assert.Equal(t, StepStatusCompleted, s.Status)
		assert.NotNil(t, s.EndTime)
	}
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	ran := map[string]bool{}
	r := NewRunner("test", nil, quietLogger())
	err := r.Run(context.Background(),
		Stage{ID: "fetch", Run: func(context.Context) error { ran["fetch"] = true; return nil }},
		Stage{ID: "parse", Run: func(context.Context) error {
			ran["parse"] = true
			return apperrors.DataFormatf("bad value")
		}},
		Stage{ID: "write", Run: func(context.Context) error { ran["write"] = true; return nil }},
	)
	require.Error(t, err)
	assert.False(t, ran["write"])

	var pe *apperrors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "parse", pe.Stage, "failing stage is stamped")
	assert.Equal(t, 4, apperrors.ExitCode(err))

	states := r.States()
	assert.Equal(t, StepStatusCompleted, states[0].Status)
	assert.Equal(t, StepStatusFailed, states[1].Status)
	assert.Equal(t, StepStatusSkipped, states[2].Status)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner("test", nil, quietLogger())
	err := r.Run(ctx, Stage{ID: "fetch", Run: func(context.Context) error {
		t.Fatal("stage must not run")
		return nil
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StepStatusSkipped, r.States()[0].Status)
}
