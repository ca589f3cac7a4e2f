package channel

import (
	"context"
	goerrors "errors"
	"strconv"
	"sync"

	"github.com/faisalnazir/rllab/pkg/errors"
	"github.com/faisalnazir/rllab/pkg/storage"
	"github.com/faisalnazir/rllab/policy"
)

// PolicyChannel is the in-memory policy distribution channel. It retains
// the latest version plus a bounded buffer of recent ones; FetchLatest is
// constant-time regardless of how many versions were ever published.
// Version ids only move forward, so every caller observes monotonically
// fresh versions.
type PolicyChannel struct {
	mu     sync.RWMutex
	latest policy.Version
	ready  bool
	recent storage.Storage
}

func NewPolicy(recentVersions int) (*PolicyChannel, error) {
	if recentVersions <= 0 {
		return nil, errInvalidCapacity
	}

	return &PolicyChannel{
		recent: storage.NewBoundedStorage(recentVersions),
	}, nil
}

// Publish makes a version available to fetchers. Republishing an already
// published id with identical weights is a no-op; the same id with
// different weights is a conflict. Ids at or below the current latest
// that are no longer retained are treated as already superseded.
func (c *PolicyChannel) Publish(ctx context.Context, v policy.Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.recent.Get(ctx, versionKey(v.ID))
	switch {
	case err == nil:
		prev, ok := existing.(policy.Version)
		if !ok {
			return errors.ErrInvalidData
		}
		if !prev.Weights.Equal(v.Weights) {
			return errors.ErrVersionConflict
		}

		return nil
	case goerrors.Is(err, errors.ErrNotFound):
	default:
		return err
	}

	if c.ready && v.ID <= c.latest.ID {
		return nil
	}

	if err := c.recent.Create(ctx, versionKey(v.ID), v); err != nil {
		return err
	}
	c.latest = v
	c.ready = true

	return nil
}

// FetchLatest returns the highest published version, or ErrNotReady if
// nothing has ever been published.
func (c *PolicyChannel) FetchLatest(_ context.Context) (policy.Version, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready {
		return policy.Version{}, errors.ErrNotReady
	}

	return c.latest, nil
}

// Fetch returns a specific version if it is still within the recent
// buffer.
func (c *PolicyChannel) Fetch(ctx context.Context, id int64) (policy.Version, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := c.recent.Get(ctx, versionKey(id))
	if err != nil {
		return policy.Version{}, err
	}
	v, ok := data.(policy.Version)
	if !ok {
		return policy.Version{}, errors.ErrInvalidData
	}

	return v, nil
}

func versionKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
