package channel_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/errors"
)

func sealedEpisode(t *testing.T, workerID string, version int64) *episode.Episode {
	t.Helper()

	ep := episode.New(workerID, version)
	require.NoError(t, ep.Append(episode.Step{Observation: []float64{0, 0, 0, 0}, Action: 1, Reward: 1}))
	ep.Seal(episode.Completed, 100)

	return ep
}

func TestNewExperience(t *testing.T) {
	cases := []struct {
		desc     string
		capacity int
		err      bool
	}{
		{
			desc:     "positive capacity",
			capacity: 8,
			err:      false,
		},
		{
			desc:     "zero capacity",
			capacity: 0,
			err:      true,
		},
		{
			desc:     "negative capacity",
			capacity: -1,
			err:      true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ch, err := channel.NewExperience(tc.capacity)
			if tc.err {
				assert.Error(t, err)
				assert.Nil(t, ch)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, ch)
			}
		})
	}
}

func TestExperiencePublish(t *testing.T) {
	ctx := context.Background()

	unsealed := episode.New("w1", 1)

	cases := []struct {
		desc string
		ep   *episode.Episode
		err  error
	}{
		{
			desc: "sealed episode",
			ep:   sealedEpisode(t, "w1", 1),
			err:  nil,
		},
		{
			desc: "unsealed episode",
			ep:   unsealed,
			err:  errors.ErrNotSealed,
		},
		{
			desc: "nil episode",
			ep:   nil,
			err:  errors.ErrNotSealed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ch, err := channel.NewExperience(4)
			require.NoError(t, err)

			err = ch.Publish(ctx, tc.ep)
			assert.ErrorIs(t, err, tc.err)
			if tc.err == nil {
				assert.Equal(t, 1, ch.Pending())
			} else {
				assert.Equal(t, 0, ch.Pending())
			}
		})
	}
}

func TestExperienceOverflow(t *testing.T) {
	ctx := context.Background()
	ch, err := channel.NewExperience(2)
	require.NoError(t, err)

	require.NoError(t, ch.Publish(ctx, sealedEpisode(t, "w1", 1)))
	require.NoError(t, ch.Publish(ctx, sealedEpisode(t, "w1", 1)))

	err = ch.Publish(ctx, sealedEpisode(t, "w1", 1))
	assert.ErrorIs(t, err, errors.ErrOverflow)
	assert.Equal(t, 2, ch.Pending())

	// Draining frees capacity and the retried publish goes through.
	drained, err := ch.Drain(ctx, 1)
	require.NoError(t, err)
	require.Len(t, drained, 1)

	assert.NoError(t, ch.Publish(ctx, sealedEpisode(t, "w1", 1)))
}

func TestExperienceDrainExactlyOnce(t *testing.T) {
	ctx := context.Background()
	ch, err := channel.NewExperience(16)
	require.NoError(t, err)

	published := make(map[string]bool)
	for i := 0; i < 10; i++ {
		ep := sealedEpisode(t, "w1", 1)
		published[ep.ID] = false
		require.NoError(t, ch.Publish(ctx, ep))
	}

	for ch.Pending() > 0 {
		drained, err := ch.Drain(ctx, 3)
		require.NoError(t, err)
		for _, ep := range drained {
			seen, ok := published[ep.ID]
			require.True(t, ok, "drained an episode that was never published")
			require.False(t, seen, "episode %s delivered twice", ep.ID)
			published[ep.ID] = true
		}
	}

	for id, seen := range published {
		assert.True(t, seen, "episode %s never delivered", id)
	}

	drained, err := ch.Drain(ctx, 3)
	assert.NoError(t, err)
	assert.Empty(t, drained)
}

func TestExperienceDrainOrder(t *testing.T) {
	ctx := context.Background()
	ch, err := channel.NewExperience(16)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 6; i++ {
		ep := sealedEpisode(t, "w1", 1)
		ids = append(ids, ep.ID)
		require.NoError(t, ch.Publish(ctx, ep))
	}

	var drainedIDs []string
	for ch.Pending() > 0 {
		drained, err := ch.Drain(ctx, 2)
		require.NoError(t, err)
		for _, ep := range drained {
			drainedIDs = append(drainedIDs, ep.ID)
		}
	}

	assert.Equal(t, ids, drainedIDs)
}

func TestExperienceDrainLimits(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		desc      string
		published int
		max       int
		want      int
	}{
		{
			desc:      "fewer available than max",
			published: 2,
			max:       5,
			want:      2,
		},
		{
			desc:      "more available than max",
			published: 5,
			max:       2,
			want:      2,
		},
		{
			desc:      "zero max",
			published: 3,
			max:       0,
			want:      0,
		},
		{
			desc:      "empty channel",
			published: 0,
			max:       4,
			want:      0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ch, err := channel.NewExperience(16)
			require.NoError(t, err)
			for i := 0; i < tc.published; i++ {
				require.NoError(t, ch.Publish(ctx, sealedEpisode(t, "w1", 1)))
			}

			drained, err := ch.Drain(ctx, tc.max)
			assert.NoError(t, err)
			assert.Len(t, drained, tc.want)
		})
	}
}

func TestExperienceConcurrentPublishDrain(t *testing.T) {
	ctx := context.Background()
	ch, err := channel.NewExperience(1024)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			workerID := fmt.Sprintf("w%d", w)
			for i := 0; i < perWorker; i++ {
				ep := episode.New(workerID, 1)
				ep.Seal(episode.Timeout, 0)
				_ = ch.Publish(ctx, ep)
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for ch.Pending() > 0 {
		drained, err := ch.Drain(ctx, 32)
		require.NoError(t, err)
		total += len(drained)
	}

	assert.Equal(t, workers*perWorker, total)
}
