package channel_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/errors"
	"github.com/faisalnazir/rllab/pkg/mqtt"
	"github.com/faisalnazir/rllab/pkg/mqtt/mocks"
)

const testChannelID = "channel-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asPayload(t *testing.T, v any) map[string]any {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))

	return msg
}

func TestMQTTExperiencePublish(t *testing.T) {
	ctx := context.Background()
	topic := fmt.Sprintf("channels/%s/messages/experience/episodes", testChannelID)

	pubsub := new(mocks.PubSub)
	pubsub.On("Publish", ctx, topic, mock.Anything).Return(nil)

	exp := channel.NewMQTTExperience(pubsub, testChannelID)

	ep := sealedEpisode(t, "w1", 1)
	require.NoError(t, exp.Publish(ctx, ep))
	pubsub.AssertCalled(t, "Publish", ctx, topic, ep)

	// Unsealed episodes never reach the broker.
	err := exp.Publish(ctx, episode.New("w1", 1))
	assert.ErrorIs(t, err, errors.ErrNotSealed)
	pubsub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestExperienceSink(t *testing.T) {
	ctx := context.Background()
	topic := fmt.Sprintf("channels/%s/messages/experience/episodes", testChannelID)

	buffer, err := channel.NewExperience(8)
	require.NoError(t, err)
	sink := channel.NewExperienceSink(buffer, testLogger())

	var handler mqtt.Handler
	pubsub := new(mocks.PubSub)
	pubsub.On("Subscribe", ctx, topic, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		handler = args.Get(2).(mqtt.Handler)
	})

	require.NoError(t, sink.Subscribe(ctx, pubsub, testChannelID))
	require.NotNil(t, handler)

	sealed := sealedEpisode(t, "w1", 2)
	require.NoError(t, handler(topic, asPayload(t, sealed)))
	require.Equal(t, 1, buffer.Pending())

	drained, err := buffer.Drain(ctx, 1)
	require.NoError(t, err)
	require.Len(t, drained, 1)
	assert.Equal(t, sealed.ID, drained[0].ID)
	assert.True(t, drained[0].Sealed())
	assert.Equal(t, int64(2), drained[0].PolicyVersion)

	// Unsealed payloads are dropped, not queued.
	require.NoError(t, handler(topic, asPayload(t, episode.New("w2", 2))))
	assert.Equal(t, 0, buffer.Pending())
}

func TestMQTTPolicyPublish(t *testing.T) {
	ctx := context.Background()
	topic := fmt.Sprintf("channels/%s/messages/policy/current", testChannelID)

	local, err := channel.NewPolicy(4)
	require.NoError(t, err)

	pubsub := new(mocks.PubSub)
	pubsub.On("Publish", ctx, topic, mock.Anything).Return(nil)

	dist := channel.NewMQTTPolicy(local, pubsub, testChannelID)

	v1 := version(1, 0.5)
	require.NoError(t, dist.Publish(ctx, v1))
	pubsub.AssertNumberOfCalls(t, "Publish", 1)

	got, err := dist.FetchLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	got, err = dist.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	// A conflicting republish is rejected locally and never broadcast.
	err = dist.Publish(ctx, version(1, 0.9))
	assert.ErrorIs(t, err, errors.ErrVersionConflict)
	pubsub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPolicyCache(t *testing.T) {
	ctx := context.Background()
	topic := fmt.Sprintf("channels/%s/messages/policy/current", testChannelID)

	cache := channel.NewPolicyCache()

	_, err := cache.FetchLatest(ctx)
	assert.ErrorIs(t, err, errors.ErrNotReady)

	var handler mqtt.Handler
	pubsub := new(mocks.PubSub)
	pubsub.On("Subscribe", ctx, topic, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		handler = args.Get(2).(mqtt.Handler)
	})
	require.NoError(t, cache.Subscribe(ctx, pubsub, testChannelID))
	require.NotNil(t, handler)

	require.NoError(t, handler(topic, asPayload(t, version(2, 0.2))))

	got, err := cache.FetchLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)

	// A late announcement of an older version is ignored.
	require.NoError(t, handler(topic, asPayload(t, version(1, 0.1))))

	got, err = cache.FetchLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
	assert.InDelta(t, 0.2, got.Weights.B[0], 1e-12)

	// Newer versions replace the cached one.
	require.NoError(t, handler(topic, asPayload(t, version(3, 0.3))))

	got, err = cache.FetchLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
}
