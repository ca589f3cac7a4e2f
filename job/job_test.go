package job_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
)

func TestStateString(t *testing.T) {
	cases := []struct {
		state job.State
		want  string
	}{
		{job.Pending, "Pending"},
		{job.Running, "Running"},
		{job.Converged, "Converged"},
		{job.Cancelled, "Cancelled"},
		{job.Failed, "Failed"},
		{job.State(42), "Unknown"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.state.String())
	}
}

func TestStateTerminal(t *testing.T) {
	cases := []struct {
		state    job.State
		terminal bool
	}{
		{job.Pending, false},
		{job.Running, false},
		{job.Converged, true},
		{job.Cancelled, true},
		{job.Failed, true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.terminal, tc.state.Terminal(), tc.state.String())
	}
}

func TestSignalController(t *testing.T) {
	ctx := context.Background()
	c := job.NewSignalController()

	assert.False(t, c.CancelRequested(ctx))

	_, done := c.Outcome()
	assert.False(t, done)

	c.Cancel()
	assert.True(t, c.CancelRequested(ctx))

	records := []metrics.Record{{Source: metrics.SourceEval, Episode: 1}}
	require.NoError(t, c.Completed(ctx, job.Cancelled, records))

	state, done := c.Outcome()
	require.True(t, done)
	assert.Equal(t, job.Cancelled, state)
}
