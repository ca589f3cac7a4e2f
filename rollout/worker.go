package rollout

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/faisalnazir/rllab"
	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/errors"
	"github.com/faisalnazir/rllab/policy"
	"github.com/faisalnazir/rllab/simulator"
)

const notReadyWait = 500 * time.Millisecond

// Worker executes the current policy in the simulator and feeds completed
// episodes back through the experience channel. One Worker drives one
// simulator; processes run any number of workers independently.
type Worker struct {
	id         string
	sim        simulator.Simulator
	policies   channel.PolicyFetcher
	experience channel.ExperiencePublisher
	recorder   metrics.Recorder
	reporter   StatusReporter
	rolloutCfg rllab.RolloutConfig
	retryCfg   rllab.RetryConfig
	rng        *rand.Rand
	logger     *slog.Logger

	mu             sync.RWMutex
	state          State
	current        policy.Version
	fetchedAt      time.Time
	haveVersion    bool
	episodeIndex   int64
	versionTrials  int64
	failedReported bool

	stopRequested atomic.Bool
}

func NewWorker(
	id string,
	sim simulator.Simulator,
	policies channel.PolicyFetcher,
	experience channel.ExperiencePublisher,
	recorder metrics.Recorder,
	reporter StatusReporter,
	rolloutCfg rllab.RolloutConfig,
	retryCfg rllab.RetryConfig,
	rng *rand.Rand,
	logger *slog.Logger,
) *Worker {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return &Worker{
		id:         id,
		sim:        sim,
		policies:   policies,
		experience: experience,
		recorder:   recorder,
		reporter:   reporter,
		rolloutCfg: rolloutCfg,
		retryCfg:   retryCfg,
		rng:        rng,
		logger:     logger,
		state:      Idle,
	}
}

// Stop raises the cooperative stop flag. The worker observes it at the
// next episode boundary; an in-flight episode finishes first.
func (w *Worker) Stop() {
	w.stopRequested.Store(true)
}

// State returns the worker's current lifecycle position.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.state
}

// Run drives the Idle -> FetchingPolicy -> RunningEpisode -> Reporting
// loop until the worker is stopped or its retry budget is exhausted. A
// periodic alive status goes out on the side so the trainer can tell a
// slow fleet apart from a dead one.
func (w *Worker) Run(ctx context.Context) error {
	if w.reporter != nil && w.rolloutCfg.AliveInterval > 0 {
		aliveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go w.reportAlive(aliveCtx)
	}

	for {
		if w.stopping(ctx) {
			return w.stop(ctx)
		}

		w.setState(FetchingPolicy)
		if err := w.refreshPolicy(ctx); err != nil {
			return w.fail(ctx, err)
		}
		if !w.hasVersion() {
			// Trainer has not published yet; not a failure.
			select {
			case <-ctx.Done():
				return w.stop(ctx)
			case <-time.After(notReadyWait):
			}
			w.setState(Idle)

			continue
		}

		if w.stopping(ctx) {
			return w.stop(ctx)
		}

		w.setState(RunningEpisode)
		ep := w.runEpisode()

		w.setState(Reporting)
		if err := w.publish(ctx, ep); err != nil {
			return w.fail(ctx, err)
		}
		w.recordEpisode(ep)

		w.setState(Idle)
	}
}

// reportAlive publishes the worker's current state on the status topic
// at every alive interval, starting immediately. Terminal states are
// reported by stop and fail themselves and are never repeated here.
func (w *Worker) reportAlive(ctx context.Context) {
	ticker := time.NewTicker(w.rolloutCfg.AliveInterval)
	defer ticker.Stop()

	for {
		state := w.State()
		if state != Stopped && state != Failed {
			if err := w.reporter.Report(ctx, w.id, state, nil); err != nil {
				w.logger.Warn("failed to report alive status", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || w.stopRequested.Load()
}

func (w *Worker) stop(ctx context.Context) error {
	w.setState(Stopped)
	if w.reporter != nil {
		// Best effort over a fresh context; the run context is gone.
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := w.reporter.Report(reportCtx, w.id, Stopped, nil); err != nil {
			w.logger.Warn("failed to report stopped status", slog.Any("error", err))
		}
	}

	return nil
}

func (w *Worker) fail(ctx context.Context, cause error) error {
	err := fmt.Errorf("%w: %w", errors.ErrRetryBudgetExhausted, cause)

	w.mu.Lock()
	alreadyReported := w.failedReported
	w.failedReported = true
	w.state = Failed
	w.mu.Unlock()

	if w.reporter != nil && !alreadyReported {
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if rerr := w.reporter.Report(reportCtx, w.id, Failed, err); rerr != nil {
			w.logger.Error("failed to report failed status", slog.Any("error", rerr))
		}
	}

	return err
}

// refreshPolicy updates the cached version unless it is still within the
// staleness tolerance. A worker holds at most one version; the previous
// one is discarded on replacement.
func (w *Worker) refreshPolicy(ctx context.Context) error {
	w.mu.RLock()
	fresh := w.haveVersion && w.rolloutCfg.PolicyStaleness > 0 &&
		time.Since(w.fetchedAt) < w.rolloutCfg.PolicyStaleness
	w.mu.RUnlock()
	if fresh {
		return nil
	}

	var fetched policy.Version
	err := w.retry(ctx, func() error {
		v, err := w.policies.FetchLatest(ctx)
		if err != nil {
			if goerrors.Is(err, errors.ErrNotReady) {
				return backoff.Permanent(err)
			}

			return err
		}
		fetched = v

		return nil
	})
	if err != nil {
		if goerrors.Is(err, errors.ErrNotReady) {
			return nil
		}

		return err
	}

	w.mu.Lock()
	if !w.haveVersion || fetched.ID > w.current.ID {
		if !w.haveVersion || fetched.ID != w.current.ID {
			w.versionTrials = 0
		}
		w.current = fetched
		w.haveVersion = true
	}
	w.fetchedAt = time.Now()
	w.mu.Unlock()

	return nil
}

func (w *Worker) hasVersion() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.haveVersion
}

func (w *Worker) runEpisode() *episode.Episode {
	w.mu.Lock()
	v := w.current
	w.episodeIndex++
	w.versionTrials++
	w.mu.Unlock()

	ep := episode.New(w.id, v.ID)
	obs := w.sim.Reset()
	deadline := time.Now().Add(w.rolloutCfg.EpisodeTimeout)

	reason := episode.Timeout
	for step := 0; step < w.rolloutCfg.MaxStepsPerEpisode; step++ {
		action := v.Weights.Action(obs, w.rng)
		next, reward, done := w.sim.Step(action)
		_ = ep.Append(episode.Step{
			Observation: obs,
			Action:      action,
			Reward:      reward,
			Done:        done,
		})
		obs = next

		if done {
			reason = episode.OffTrack
			if w.completion() >= 1 {
				reason = episode.Completed
			}

			break
		}
		if time.Now().After(deadline) {
			break
		}
	}

	ep.Seal(reason, w.completion()*100)

	return ep
}

func (w *Worker) completion() float64 {
	if pr, ok := w.sim.(simulator.ProgressReporter); ok {
		return pr.Progress()
	}

	return 0
}

// publish retries transient channel faults, including Overflow, within
// the retry budget.
func (w *Worker) publish(ctx context.Context, ep *episode.Episode) error {
	return w.retry(ctx, func() error {
		return w.experience.Publish(ctx, ep)
	})
}

func (w *Worker) recordEpisode(ep *episode.Episode) {
	if w.recorder == nil {
		return
	}

	w.mu.RLock()
	index := w.episodeIndex
	trial := w.versionTrials
	w.mu.RUnlock()

	w.recorder.Record(metrics.Record{
		Source:               metrics.SourceTrain,
		Episode:              index,
		Trial:                trial,
		RewardScore:          ep.TotalReward,
		CompletionPercentage: ep.CompletionPercentage,
		ElapsedTime:          ep.ElapsedTime().Seconds(),
	})
}

func (w *Worker) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retryCfg.InitialInterval
	bo.MaxInterval = w.retryCfg.MaxInterval
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.retryCfg.Budget)), ctx))
}
