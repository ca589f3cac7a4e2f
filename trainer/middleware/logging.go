package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/policy"
	"github.com/faisalnazir/rllab/trainer"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    trainer.Service
}

func Logging(logger *slog.Logger, svc trainer.Service) trainer.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Run(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Training run failed", args...)

			return
		}
		lm.logger.Info("Training run completed", args...)
	}(time.Now())

	return lm.svc.Run(ctx)
}

func (lm *loggingMiddleware) Job(ctx context.Context) (resp job.Job, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("job",
				slog.String("id", resp.ID),
				slog.String("state", resp.State.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get job failed", args...)

			return
		}
		lm.logger.Info("Get job completed successfully", args...)
	}(time.Now())

	return lm.svc.Job(ctx)
}

func (lm *loggingMiddleware) Policy(ctx context.Context) (resp policy.Version, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int64("version", resp.ID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get policy failed", args...)

			return
		}
		lm.logger.Info("Get policy completed successfully", args...)
	}(time.Now())

	return lm.svc.Policy(ctx)
}

func (lm *loggingMiddleware) Metrics(ctx context.Context) (resp []metrics.Record, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("records", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get metrics failed", args...)

			return
		}
		lm.logger.Info("Get metrics completed successfully", args...)
	}(time.Now())

	return lm.svc.Metrics(ctx)
}

func (lm *loggingMiddleware) Cancel(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Cancel failed", args...)

			return
		}
		lm.logger.Info("Cancel completed successfully", args...)
	}(time.Now())

	return lm.svc.Cancel(ctx)
}
