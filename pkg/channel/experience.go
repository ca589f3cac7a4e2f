package channel

import (
	"context"
	goerrors "errors"
	"sync"

	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/pkg/errors"
)

var errInvalidCapacity = goerrors.New("capacity must be greater than zero")

// ExperienceChannel is the in-memory experience buffer. It is safe for
// concurrent publish and drain from independent callers. Episodes are
// held in arrival order, which preserves each worker's own submission
// order; episodes from different workers interleave arbitrarily.
type ExperienceChannel struct {
	mu       sync.Mutex
	items    []*episode.Episode
	capacity int
}

func NewExperience(capacity int) (*ExperienceChannel, error) {
	if capacity <= 0 {
		return nil, errInvalidCapacity
	}

	return &ExperienceChannel{
		items:    make([]*episode.Episode, 0, capacity),
		capacity: capacity,
	}, nil
}

// Publish accepts a sealed episode. Unsealed episodes are rejected, which
// keeps partial episodes from crashed workers out of the trainer's view.
// Past capacity it fails with ErrOverflow; producers retry.
func (c *ExperienceChannel) Publish(_ context.Context, ep *episode.Episode) error {
	if ep == nil || !ep.Sealed() {
		return errors.ErrNotSealed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.capacity {
		return errors.ErrOverflow
	}
	c.items = append(c.items, ep)

	return nil
}

// Drain removes and returns up to max episodes without blocking. Each
// published episode is returned by exactly one Drain call.
func (c *ExperienceChannel) Drain(_ context.Context, max int) ([]*episode.Episode, error) {
	if max <= 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := max
	if n > len(c.items) {
		n = len(c.items)
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]*episode.Episode, n)
	copy(out, c.items[:n])
	c.items = append(c.items[:0], c.items[n:]...)

	return out, nil
}

// Pending returns the number of buffered episodes.
func (c *ExperienceChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}
