package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/policy"
	"github.com/faisalnazir/rllab/trainer"
)

var _ trainer.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    trainer.Service
}

func Tracing(tracer trace.Tracer, svc trainer.Service) trainer.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Run(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "run")
	defer span.End()

	return tm.svc.Run(ctx)
}

func (tm *tracing) Job(ctx context.Context) (job.Job, error) {
	ctx, span := tm.tracer.Start(ctx, "get-job")
	defer span.End()

	return tm.svc.Job(ctx)
}

func (tm *tracing) Policy(ctx context.Context) (policy.Version, error) {
	ctx, span := tm.tracer.Start(ctx, "get-policy")
	defer span.End()

	return tm.svc.Policy(ctx)
}

func (tm *tracing) Metrics(ctx context.Context) ([]metrics.Record, error) {
	ctx, span := tm.tracer.Start(ctx, "get-metrics")
	defer span.End()

	return tm.svc.Metrics(ctx)
}

func (tm *tracing) Cancel(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "cancel", trace.WithAttributes(
		attribute.String("source", "api"),
	))
	defer span.End()

	return tm.svc.Cancel(ctx)
}
