package channel

import (
	"context"

	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/policy"
)

// ExperiencePublisher is the worker-side surface of the experience
// channel. Publish accepts a sealed episode and makes it visible to
// exactly one subsequent Drain call by the trainer.
type ExperiencePublisher interface {
	Publish(ctx context.Context, ep *episode.Episode) error
}

// ExperienceDrainer is the trainer-side surface. Drain returns up to max
// available episodes without blocking, in arrival order; each episode is
// delivered at most once. Pending reports the buffered count and feeds
// the trainer's backpressure check.
type ExperienceDrainer interface {
	Drain(ctx context.Context, max int) ([]*episode.Episode, error)
	Pending() int
}

// Experience is the full channel contract.
type Experience interface {
	ExperiencePublisher
	ExperienceDrainer
}

// PolicyPublisher is the trainer-side surface of the policy distribution
// channel. Publish is idempotent per version id.
type PolicyPublisher interface {
	Publish(ctx context.Context, v policy.Version) error
}

// PolicyFetcher is the worker-side surface. FetchLatest returns the
// highest version observed so far; before any publish it fails with
// ErrNotReady. Once a caller has observed version v it never observes a
// version lower than v.
type PolicyFetcher interface {
	FetchLatest(ctx context.Context) (policy.Version, error)
}

// Policy is the full channel contract, including addressable access to
// the bounded buffer of recent versions.
type Policy interface {
	PolicyPublisher
	PolicyFetcher
	Fetch(ctx context.Context, id int64) (policy.Version, error)
}
