package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/faisalnazir/rllab/job"
	rllabmetrics "github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/policy"
	"github.com/faisalnazir/rllab/trainer"
)

var _ trainer.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     trainer.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc trainer.Service) trainer.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Run(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "run").Add(1)
		mm.latency.With("method", "run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Run(ctx)
}

func (mm *metricsMiddleware) Job(ctx context.Context) (job.Job, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-job").Add(1)
		mm.latency.With("method", "get-job").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Job(ctx)
}

func (mm *metricsMiddleware) Policy(ctx context.Context) (policy.Version, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-policy").Add(1)
		mm.latency.With("method", "get-policy").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Policy(ctx)
}

func (mm *metricsMiddleware) Metrics(ctx context.Context) ([]rllabmetrics.Record, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-metrics").Add(1)
		mm.latency.With("method", "get-metrics").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Metrics(ctx)
}

func (mm *metricsMiddleware) Cancel(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "cancel").Add(1)
		mm.latency.With("method", "cancel").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Cancel(ctx)
}
