package trainer

import (
	"context"
	goerrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/google/uuid"

	"github.com/faisalnazir/rllab"
	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/errors"
	"github.com/faisalnazir/rllab/pkg/storage"
	"github.com/faisalnazir/rllab/policy"
)

const (
	drainChunk   = 32
	pollInterval = 50 * time.Millisecond
)

type service struct {
	cfg        rllab.TrainerConfig
	retryCfg   rllab.RetryConfig
	experience channel.ExperienceDrainer
	policies   channel.Policy
	optimizer  Optimizer
	lifecycle  job.LifecycleController
	agg        *metrics.Aggregator
	jobsDB     storage.Storage
	stop       StopBroadcaster
	registry   *WorkerRegistry
	staleDrops kitmetrics.Counter
	logger     *slog.Logger

	jobID string

	mu               sync.Mutex
	current          policy.Version
	iteration        int64
	episodesAccepted int64
	tracker          *convergenceTracker

	cancelled atomic.Bool
}

// NewService assembles the coordinator. The stop broadcaster and
// lifecycle controller may be nil in single-process wirings; the stale
// counter falls back to a discard counter.
func NewService(
	cfg rllab.TrainerConfig,
	retryCfg rllab.RetryConfig,
	experience channel.ExperienceDrainer,
	policies channel.Policy,
	optimizer Optimizer,
	lifecycle job.LifecycleController,
	agg *metrics.Aggregator,
	jobsDB storage.Storage,
	stop StopBroadcaster,
	registry *WorkerRegistry,
	staleDrops kitmetrics.Counter,
	logger *slog.Logger,
) (Service, error) {
	if staleDrops == nil {
		staleDrops = discard.NewCounter()
	}

	svc := &service{
		cfg:        cfg,
		retryCfg:   retryCfg,
		experience: experience,
		policies:   policies,
		optimizer:  optimizer,
		lifecycle:  lifecycle,
		agg:        agg,
		jobsDB:     jobsDB,
		stop:       stop,
		registry:   registry,
		staleDrops: staleDrops,
		logger:     logger,
		jobID:      uuid.NewString(),
		tracker:    newConvergenceTracker(cfg.RewardThreshold, cfg.ConvergenceWindow),
	}

	j := job.Job{
		ID:        svc.jobID,
		Name:      "training",
		State:     job.Pending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := jobsDB.Create(context.Background(), svc.jobID, j); err != nil {
		return nil, err
	}

	return svc, nil
}

func (s *service) Run(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return s.finish(ctx, job.Failed, err)
	}

	for {
		if s.cancelRequested(ctx) {
			return s.finish(ctx, job.Cancelled, nil)
		}

		batch, err := s.accumulate(ctx)
		if err != nil {
			return s.finish(ctx, job.Failed, err)
		}

		cancelRequested := s.cancelRequested(ctx)
		if cancelRequested && len(batch) < s.cfg.MinBatchSize {
			// Partial batches never cross iteration boundaries.
			return s.finish(ctx, job.Cancelled, nil)
		}
		if len(batch) == 0 {
			// A quiet channel with a fleet that is entirely gone will
			// never fill a batch again.
			if s.registry != nil && s.registry.AllUnreachable() {
				return s.finish(ctx, job.Failed, errors.ErrNoActiveWorkers)
			}

			continue
		}

		if err := s.iterate(ctx, batch); err != nil {
			return s.finish(ctx, job.Failed, err)
		}

		if s.converged() {
			return s.finish(ctx, job.Converged, nil)
		}
		if cancelRequested {
			return s.finish(ctx, job.Cancelled, nil)
		}
	}
}

// start transitions Pending -> Running and publishes the initial policy
// version so workers have something to roll out.
func (s *service) start(ctx context.Context) error {
	initial := policy.Version{
		ID:        1,
		Weights:   policy.DefaultWeights(),
		CreatedAt: time.Now(),
	}
	if err := s.retry(ctx, func() error {
		return s.policies.Publish(ctx, initial)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = initial
	s.mu.Unlock()

	return s.updateJob(ctx, func(j *job.Job) {
		j.State = job.Running
		j.StartTime = time.Now()
		j.PolicyVersion = initial.ID
	})
}

// accumulate drains the experience channel into a batch until the minimum
// batch size is reached or the maximum wait elapses, whichever first.
// Episodes generated under a version lagging beyond the tolerance are
// dropped and counted. Returns early when cancellation is requested; the
// caller decides whether the batch is full enough to finish. The
// high-water mark is advisory only: a backlog above it is logged but
// draining is never paused, since workers already back off on overflow.
func (s *service) accumulate(ctx context.Context) ([]*episode.Episode, error) {
	if pending := s.experience.Pending(); pending > s.cfg.HighWaterMark {
		s.logger.Warn("experience backlog above high-water mark",
			slog.Int("pending", pending),
			slog.Int("high_water_mark", s.cfg.HighWaterMark),
		)
	}

	deadline := time.Now().Add(s.cfg.MaxBatchWait)
	batch := make([]*episode.Episode, 0, s.cfg.MaxBatchSize)

	for {
		if len(batch) >= s.cfg.MinBatchSize || len(batch) >= s.cfg.MaxBatchSize {
			return batch, nil
		}
		if time.Now().After(deadline) || s.cancelRequested(ctx) {
			return batch, nil
		}

		room := s.cfg.MaxBatchSize - len(batch)
		if room > drainChunk {
			room = drainChunk
		}

		var drained []*episode.Episode
		if err := s.retry(ctx, func() error {
			eps, err := s.experience.Drain(ctx, room)
			if err != nil {
				return err
			}
			drained = eps

			return nil
		}); err != nil {
			return nil, goerrors.Join(errors.ErrRetryBudgetExhausted, err)
		}

		accepted, dropped := s.filterStale(drained)
		batch = append(batch, accepted...)

		if len(accepted) > 0 || dropped > 0 {
			if err := s.updateJob(ctx, func(j *job.Job) {
				j.EpisodesSeen += int64(len(accepted))
				j.EpisodesDropped += int64(dropped)
			}); err != nil {
				return nil, err
			}
		}

		if len(drained) == 0 {
			select {
			case <-ctx.Done():
				return batch, nil
			case <-time.After(pollInterval):
			}
		}
	}
}

func (s *service) filterStale(eps []*episode.Episode) ([]*episode.Episode, int) {
	s.mu.Lock()
	currentID := s.current.ID
	s.mu.Unlock()

	accepted := make([]*episode.Episode, 0, len(eps))
	dropped := 0
	for _, ep := range eps {
		if currentID-ep.PolicyVersion > s.cfg.StaleLagTolerance {
			dropped++
			s.staleDrops.Add(1)
			s.logger.Debug("dropping stale episode",
				slog.String("episode_id", ep.ID),
				slog.Int64("episode_version", ep.PolicyVersion),
				slog.Int64("current_version", currentID),
			)

			continue
		}
		accepted = append(accepted, ep)
	}

	return accepted, dropped
}

// iterate runs exactly one policy update for the accepted batch and
// publishes the resulting version.
func (s *service) iterate(ctx context.Context, batch []*episode.Episode) error {
	began := time.Now()

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	weights, err := s.optimizer.Update(ctx, current, batch)
	if err != nil {
		return err
	}

	next := policy.Version{
		ID:        current.ID + 1,
		Weights:   weights,
		CreatedAt: time.Now(),
	}
	if err := s.retry(ctx, func() error {
		return s.policies.Publish(ctx, next)
	}); err != nil {
		return goerrors.Join(errors.ErrRetryBudgetExhausted, err)
	}

	var rewardSum, completionSum float64
	for _, ep := range batch {
		rewardSum += ep.TotalReward
		completionSum += ep.CompletionPercentage
	}
	meanReward := rewardSum / float64(len(batch))
	meanCompletion := completionSum / float64(len(batch))

	s.mu.Lock()
	s.current = next
	s.iteration++
	s.episodesAccepted += int64(len(batch))
	iteration := s.iteration
	s.tracker.Observe(meanReward)
	s.mu.Unlock()

	s.agg.Record(metrics.Record{
		Source:               metrics.SourceEval,
		Episode:              iteration,
		Trial:                int64(len(batch)),
		RewardScore:          meanReward,
		CompletionPercentage: meanCompletion,
		ElapsedTime:          time.Since(began).Seconds(),
	})

	return s.updateJob(ctx, func(j *job.Job) {
		j.Iteration = iteration
		j.PolicyVersion = next.ID
	})
}

func (s *service) converged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracker.Satisfied() {
		return true
	}
	if s.cfg.MaxIterations > 0 && s.iteration >= s.cfg.MaxIterations {
		return true
	}
	if s.cfg.MaxEpisodes > 0 && s.episodesAccepted >= s.cfg.MaxEpisodes {
		return true
	}

	return false
}

func (s *service) cancelRequested(ctx context.Context) bool {
	if ctx.Err() != nil || s.cancelled.Load() {
		return true
	}
	if s.lifecycle != nil && s.lifecycle.CancelRequested(ctx) {
		return true
	}

	return false
}

func (s *service) finish(ctx context.Context, state job.State, cause error) error {
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.updateJob(finishCtx, func(j *job.Job) {
		j.State = state
		j.FinishTime = time.Now()
		if cause != nil {
			j.Error = cause.Error()
		}
	}); err != nil {
		s.logger.Error("failed to update job record", slog.Any("error", err))
	}

	if s.stop != nil {
		if err := s.stop.Broadcast(finishCtx); err != nil {
			s.logger.Warn("failed to broadcast stop", slog.Any("error", err))
		}
	}

	if s.lifecycle != nil {
		if err := s.lifecycle.Completed(finishCtx, state, s.agg.Snapshot()); err != nil {
			s.logger.Warn("failed to report completion", slog.Any("error", err))
		}
	}

	s.logger.Info("training finished",
		slog.String("job_id", s.jobID),
		slog.String("state", state.String()),
	)

	return cause
}

func (s *service) Job(ctx context.Context) (job.Job, error) {
	data, err := s.jobsDB.Get(ctx, s.jobID)
	if err != nil {
		return job.Job{}, err
	}
	j, ok := data.(job.Job)
	if !ok {
		return job.Job{}, errors.ErrInvalidData
	}

	return j, nil
}

func (s *service) Policy(ctx context.Context) (policy.Version, error) {
	return s.policies.FetchLatest(ctx)
}

func (s *service) Metrics(_ context.Context) ([]metrics.Record, error) {
	return s.agg.Snapshot(), nil
}

func (s *service) Cancel(_ context.Context) error {
	s.cancelled.Store(true)

	return nil
}

func (s *service) updateJob(ctx context.Context, mutate func(*job.Job)) error {
	data, err := s.jobsDB.Get(ctx, s.jobID)
	if err != nil {
		return err
	}
	j, ok := data.(job.Job)
	if !ok {
		return errors.ErrInvalidData
	}

	mutate(&j)
	j.UpdatedAt = time.Now()

	return s.jobsDB.Update(ctx, s.jobID, j)
}

func (s *service) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryCfg.InitialInterval
	bo.MaxInterval = s.retryCfg.MaxInterval
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.retryCfg.Budget)), ctx))
}
