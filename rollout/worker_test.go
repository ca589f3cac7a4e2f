package rollout_test

import (
	"context"
	goerrors "errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnazir/rllab"
	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/errors"
	"github.com/faisalnazir/rllab/policy"
	"github.com/faisalnazir/rllab/rollout"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRolloutConfig() rllab.RolloutConfig {
	return rllab.RolloutConfig{
		MaxStepsPerEpisode: 10,
		EpisodeTimeout:     time.Second,
		PolicyStaleness:    time.Minute,
	}
}

func testRetryConfig() rllab.RetryConfig {
	return rllab.RetryConfig{
		Budget:          3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

type fakeSim struct {
	doneAfter int
	progress  float64
	stepDelay time.Duration
	steps     int
}

func (s *fakeSim) Reset() []float64 {
	s.steps = 0

	return []float64{0, 0, 4, 0}
}

func (s *fakeSim) Step(_ int) ([]float64, float64, bool) {
	if s.stepDelay > 0 {
		time.Sleep(s.stepDelay)
	}
	s.steps++
	done := s.doneAfter > 0 && s.steps >= s.doneAfter

	return []float64{0, 0, 4, 0}, 1, done
}

func (s *fakeSim) Progress() float64 { return s.progress }

type statusReport struct {
	workerID string
	state    rollout.State
	cause    error
}

type captureReporter struct {
	mu      sync.Mutex
	reports []statusReport
}

func (r *captureReporter) Report(_ context.Context, workerID string, state rollout.State, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = append(r.reports, statusReport{workerID: workerID, state: state, cause: cause})

	return nil
}

func (r *captureReporter) all() []statusReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]statusReport(nil), r.reports...)
}

type captureRecorder struct {
	mu      sync.Mutex
	records []metrics.Record
}

func (r *captureRecorder) Record(rec metrics.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
}

func (r *captureRecorder) all() []metrics.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]metrics.Record(nil), r.records...)
}

func readyPolicies(t *testing.T) *channel.PolicyChannel {
	t.Helper()

	policies, err := channel.NewPolicy(4)
	require.NoError(t, err)
	require.NoError(t, policies.Publish(context.Background(), policy.Version{
		ID:      1,
		Weights: policy.DefaultWeights(),
	}))

	return policies
}

func TestWorkerProducesSealedEpisodes(t *testing.T) {
	ctx := context.Background()

	experience, err := channel.NewExperience(64)
	require.NoError(t, err)
	reporter := &captureReporter{}
	recorder := &captureRecorder{}

	w := rollout.NewWorker(
		"w1",
		&fakeSim{doneAfter: 3, progress: 1, stepDelay: time.Millisecond},
		readyPolicies(t),
		experience,
		recorder,
		reporter,
		testRolloutConfig(),
		testRetryConfig(),
		rand.New(rand.NewSource(1)),
		testLogger(),
	)

	errs := make(chan error, 1)
	go func() {
		errs <- w.Run(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for experience.Pending() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.GreaterOrEqual(t, experience.Pending(), 2, "worker produced no episodes")

	w.Stop()
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, rollout.Stopped, w.State())

	drained, err := experience.Drain(ctx, 64)
	require.NoError(t, err)
	for _, ep := range drained {
		assert.True(t, ep.Sealed())
		assert.Equal(t, "w1", ep.WorkerID)
		assert.Equal(t, int64(1), ep.PolicyVersion)
		assert.Equal(t, episode.Completed, ep.Terminal)
		assert.InDelta(t, 100, ep.CompletionPercentage, 1e-9)
		assert.Equal(t, 3, ep.StepCount)
	}

	records := recorder.all()
	require.NotEmpty(t, records)
	assert.Equal(t, metrics.SourceTrain, records[0].Source)
	assert.Equal(t, int64(1), records[0].Episode)
	assert.Equal(t, int64(1), records[0].Trial)

	reports := reporter.all()
	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.Equal(t, rollout.Stopped, last.state)
	assert.Equal(t, "w1", last.workerID)
}

func TestWorkerStopBeforeRun(t *testing.T) {
	experience, err := channel.NewExperience(8)
	require.NoError(t, err)
	reporter := &captureReporter{}

	w := rollout.NewWorker(
		"w1",
		&fakeSim{doneAfter: 3},
		readyPolicies(t),
		experience,
		nil,
		reporter,
		testRolloutConfig(),
		testRetryConfig(),
		rand.New(rand.NewSource(1)),
		testLogger(),
	)

	w.Stop()
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, rollout.Stopped, w.State())
	assert.Equal(t, 0, experience.Pending())

	reports := reporter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, rollout.Stopped, reports[0].state)
}

type failingPublisher struct{}

func (failingPublisher) Publish(_ context.Context, _ *episode.Episode) error {
	return goerrors.New("broker unavailable")
}

func TestWorkerRetryBudgetExhausted(t *testing.T) {
	reporter := &captureReporter{}

	w := rollout.NewWorker(
		"w1",
		&fakeSim{doneAfter: 3},
		readyPolicies(t),
		failingPublisher{},
		nil,
		reporter,
		testRolloutConfig(),
		testRetryConfig(),
		rand.New(rand.NewSource(1)),
		testLogger(),
	)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRetryBudgetExhausted)
	assert.Equal(t, rollout.Failed, w.State())

	var failed []statusReport
	for _, r := range reporter.all() {
		if r.state == rollout.Failed {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1, "failure must be reported exactly once")
	assert.ErrorIs(t, failed[0].cause, errors.ErrRetryBudgetExhausted)
}

func TestWorkerOverflowRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()

	// Capacity one: every second publish overflows until the channel is
	// drained from the side.
	experience, err := channel.NewExperience(1)
	require.NoError(t, err)

	retryCfg := testRetryConfig()
	retryCfg.Budget = 10

	w := rollout.NewWorker(
		"w1",
		&fakeSim{doneAfter: 3},
		readyPolicies(t),
		experience,
		nil,
		&captureReporter{},
		testRolloutConfig(),
		retryCfg,
		rand.New(rand.NewSource(1)),
		testLogger(),
	)

	errs := make(chan error, 1)
	go func() {
		errs <- w.Run(ctx)
	}()

	// Keep draining until the worker has pushed several episodes through
	// the one-slot channel, then stop it; draining continues so an
	// in-flight retry always finds room.
	total := 0
	stopped := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		drained, err := experience.Drain(ctx, 1)
		require.NoError(t, err)
		total += len(drained)

		if total >= 3 && !stopped {
			w.Stop()
			stopped = true
		}

		select {
		case err := <-errs:
			require.True(t, stopped, "worker exited before being stopped")
			require.NoError(t, err)
			require.GreaterOrEqual(t, total, 3)

			return
		case <-time.After(time.Millisecond):
		}
	}
	t.Fatal("worker did not stop")
}

func TestWorkerWaitsForFirstPolicy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	experience, err := channel.NewExperience(8)
	require.NoError(t, err)
	policies, err := channel.NewPolicy(4)
	require.NoError(t, err)

	w := rollout.NewWorker(
		"w1",
		&fakeSim{doneAfter: 3},
		policies,
		experience,
		nil,
		&captureReporter{},
		testRolloutConfig(),
		testRetryConfig(),
		rand.New(rand.NewSource(1)),
		testLogger(),
	)

	errs := make(chan error, 1)
	go func() {
		errs <- w.Run(ctx)
	}()

	// No version published: the worker idles without failing or
	// producing.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, experience.Pending())
	select {
	case err := <-errs:
		t.Fatalf("worker terminated while waiting for a policy: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
	assert.Equal(t, rollout.Stopped, w.State())
}

func TestWorkerReportsAlive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	experience, err := channel.NewExperience(8)
	require.NoError(t, err)
	policies, err := channel.NewPolicy(4)
	require.NoError(t, err)
	reporter := &captureReporter{}

	cfg := testRolloutConfig()
	cfg.AliveInterval = 20 * time.Millisecond

	w := rollout.NewWorker(
		"w1",
		&fakeSim{doneAfter: 3},
		policies,
		experience,
		nil,
		reporter,
		cfg,
		testRetryConfig(),
		rand.New(rand.NewSource(1)),
		testLogger(),
	)

	errs := make(chan error, 1)
	go func() {
		errs <- w.Run(ctx)
	}()

	// No policy is ever published: the worker just idles, yet its alive
	// reports keep flowing.
	deadline := time.Now().Add(3 * time.Second)
	for len(reporter.all()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	reports := reporter.all()
	require.GreaterOrEqual(t, len(reports), 2, "worker never reported alive")
	for _, r := range reports {
		assert.Equal(t, "w1", r.workerID)
		assert.NotEqual(t, rollout.Stopped, r.state)
		assert.NotEqual(t, rollout.Failed, r.state)
	}

	cancel()
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}

func TestWorkerTerminalReasons(t *testing.T) {
	cases := []struct {
		desc     string
		sim      *fakeSim
		reason   episode.TerminalReason
		maxSteps int
	}{
		{
			desc:     "done with full progress",
			sim:      &fakeSim{doneAfter: 3, progress: 1, stepDelay: time.Millisecond},
			reason:   episode.Completed,
			maxSteps: 10,
		},
		{
			desc:     "done with partial progress",
			sim:      &fakeSim{doneAfter: 3, progress: 0.4, stepDelay: time.Millisecond},
			reason:   episode.OffTrack,
			maxSteps: 10,
		},
		{
			desc:     "step limit reached",
			sim:      &fakeSim{progress: 0.6, stepDelay: time.Millisecond},
			reason:   episode.Timeout,
			maxSteps: 5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ctx := context.Background()

			experience, err := channel.NewExperience(8)
			require.NoError(t, err)

			cfg := testRolloutConfig()
			cfg.MaxStepsPerEpisode = tc.maxSteps

			w := rollout.NewWorker(
				"w1",
				tc.sim,
				readyPolicies(t),
				experience,
				nil,
				&captureReporter{},
				cfg,
				testRetryConfig(),
				rand.New(rand.NewSource(1)),
				testLogger(),
			)

			errs := make(chan error, 1)
			go func() {
				errs <- w.Run(ctx)
			}()

			deadline := time.Now().Add(3 * time.Second)
			for experience.Pending() < 1 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			w.Stop()
			select {
			case err := <-errs:
				require.NoError(t, err)
			case <-time.After(3 * time.Second):
				t.Fatal("worker did not stop")
			}

			drained, err := experience.Drain(ctx, 1)
			require.NoError(t, err)
			require.Len(t, drained, 1)
			assert.Equal(t, tc.reason, drained[0].Terminal)
			assert.InDelta(t, tc.sim.progress*100, drained[0].CompletionPercentage, 1e-9)
		})
	}
}

func TestWorkerStateString(t *testing.T) {
	cases := []struct {
		state rollout.State
		want  string
	}{
		{rollout.Idle, "Idle"},
		{rollout.FetchingPolicy, "FetchingPolicy"},
		{rollout.RunningEpisode, "RunningEpisode"},
		{rollout.Reporting, "Reporting"},
		{rollout.Stopped, "Stopped"},
		{rollout.Failed, "Failed"},
		{rollout.State(42), "Unknown"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.state.String())
	}
}
