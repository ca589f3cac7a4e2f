package job

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/faisalnazir/rllab/metrics"
)

// LifecycleController is the surface of the external cloud scheduler the
// core depends on: an advisory cancel flag polled at safe boundaries, and
// a completion callback receiving the terminal state together with the
// final metrics snapshot.
type LifecycleController interface {
	CancelRequested(ctx context.Context) bool
	Completed(ctx context.Context, state State, records []metrics.Record) error
}

// SignalController is an in-process LifecycleController driven by an
// explicit Cancel call. The trainer API's cancel endpoint and the tests
// use it; real deployments substitute the scheduler's own signal.
type SignalController struct {
	cancelled atomic.Bool

	mu      sync.Mutex
	state   State
	records []metrics.Record
	done    bool
}

func NewSignalController() *SignalController {
	return &SignalController{}
}

// Cancel raises the advisory stop flag.
func (c *SignalController) Cancel() {
	c.cancelled.Store(true)
}

func (c *SignalController) CancelRequested(_ context.Context) bool {
	return c.cancelled.Load()
}

func (c *SignalController) Completed(_ context.Context, state State, records []metrics.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = state
	c.records = records
	c.done = true

	return nil
}

// Outcome returns the reported terminal state, if any.
func (c *SignalController) Outcome() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state, c.done
}
