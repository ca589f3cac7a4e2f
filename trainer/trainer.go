package trainer

import (
	"context"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/policy"
)

// Service is the trainer/coordinator surface. Run drives the training
// loop to a terminal state; the remaining operations serve the HTTP API
// and the CLI.
type Service interface {
	// Run executes the job until it converges, is cancelled, or fails.
	Run(ctx context.Context) error

	// Job returns the job record with its live counters.
	Job(ctx context.Context) (job.Job, error)

	// Policy returns the latest published policy version.
	Policy(ctx context.Context) (policy.Version, error)

	// Metrics returns the aggregator snapshot as of the call.
	Metrics(ctx context.Context) ([]metrics.Record, error)

	// Cancel raises the external cancellation signal. The loop observes
	// it at the next iteration boundary.
	Cancel(ctx context.Context) error
}
