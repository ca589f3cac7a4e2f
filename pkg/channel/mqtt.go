package channel

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/pkg/errors"
	"github.com/faisalnazir/rllab/pkg/mqtt"
	"github.com/faisalnazir/rllab/policy"
)

var (
	experienceTopicTemplate = "channels/%s/messages/experience/episodes"
	policyTopicTemplate     = "channels/%s/messages/policy/current"
)

const sinkRetryElapsed = 30 * time.Second

// MQTTExperience is the worker-side experience publisher in the
// distributed wiring: sealed episodes go out as JSON on the experience
// topic.
type MQTTExperience struct {
	pubsub mqtt.PubSub
	topic  string
}

func NewMQTTExperience(pubsub mqtt.PubSub, channelID string) *MQTTExperience {
	return &MQTTExperience{
		pubsub: pubsub,
		topic:  fmt.Sprintf(experienceTopicTemplate, channelID),
	}
}

func (c *MQTTExperience) Publish(ctx context.Context, ep *episode.Episode) error {
	if ep == nil || !ep.Sealed() {
		return errors.ErrNotSealed
	}

	return c.pubsub.Publish(ctx, c.topic, ep)
}

// ExperienceSink is the trainer-side bridge: it subscribes to the
// experience topic and feeds decoded episodes into the in-memory buffer
// the trainer drains. Payloads that do not decode to a sealed episode are
// dropped, so partial episodes from crashed workers never reach the
// trainer. A full buffer is retried with backoff before giving up on the
// message.
type ExperienceSink struct {
	buffer *ExperienceChannel
	logger *slog.Logger
}

func NewExperienceSink(buffer *ExperienceChannel, logger *slog.Logger) *ExperienceSink {
	return &ExperienceSink{
		buffer: buffer,
		logger: logger,
	}
}

func (s *ExperienceSink) Subscribe(ctx context.Context, pubsub mqtt.PubSub, channelID string) error {
	topic := fmt.Sprintf(experienceTopicTemplate, channelID)

	return pubsub.Subscribe(ctx, topic, s.handle(ctx))
}

func (s *ExperienceSink) handle(ctx context.Context) mqtt.Handler {
	return func(topic string, msg map[string]any) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		var ep episode.Episode
		if err := json.Unmarshal(data, &ep); err != nil {
			return err
		}
		ep.MarkSealed()
		if !ep.Sealed() {
			s.logger.Warn("discarding unsealed episode payload",
				slog.String("episode_id", ep.ID),
				slog.String("worker_id", ep.WorkerID),
			)

			return nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = sinkRetryElapsed

		return backoff.Retry(func() error {
			err := s.buffer.Publish(ctx, &ep)
			if err != nil && !goerrors.Is(err, errors.ErrOverflow) {
				return backoff.Permanent(err)
			}

			return err
		}, backoff.WithContext(bo, ctx))
	}
}

// MQTTPolicy is the trainer-side policy distributor in the distributed
// wiring. Every publish lands in the local channel first, which keeps the
// idempotence and recent-buffer guarantees, and is then announced on the
// policy topic for worker caches.
type MQTTPolicy struct {
	local  *PolicyChannel
	pubsub mqtt.PubSub
	topic  string
}

func NewMQTTPolicy(local *PolicyChannel, pubsub mqtt.PubSub, channelID string) *MQTTPolicy {
	return &MQTTPolicy{
		local:  local,
		pubsub: pubsub,
		topic:  fmt.Sprintf(policyTopicTemplate, channelID),
	}
}

func (c *MQTTPolicy) Publish(ctx context.Context, v policy.Version) error {
	if err := c.local.Publish(ctx, v); err != nil {
		return err
	}

	return c.pubsub.Publish(ctx, c.topic, v)
}

func (c *MQTTPolicy) FetchLatest(ctx context.Context) (policy.Version, error) {
	return c.local.FetchLatest(ctx)
}

func (c *MQTTPolicy) Fetch(ctx context.Context, id int64) (policy.Version, error) {
	return c.local.Fetch(ctx, id)
}

// PolicyCache is the worker-side policy fetcher: it subscribes to the
// policy topic and keeps only the newest version it has seen. Fetches are
// local and non-blocking. Announcements older than the cached version are
// ignored, so a worker's view only ever moves forward.
type PolicyCache struct {
	mu     sync.RWMutex
	latest policy.Version
	ready  bool
}

func NewPolicyCache() *PolicyCache {
	return &PolicyCache{}
}

func (c *PolicyCache) Subscribe(ctx context.Context, pubsub mqtt.PubSub, channelID string) error {
	topic := fmt.Sprintf(policyTopicTemplate, channelID)

	return pubsub.Subscribe(ctx, topic, c.handle)
}

func (c *PolicyCache) handle(topic string, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var v policy.Version
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready && v.ID <= c.latest.ID {
		return nil
	}
	c.latest = v
	c.ready = true

	return nil
}

func (c *PolicyCache) FetchLatest(_ context.Context) (policy.Version, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready {
		return policy.Version{}, errors.ErrNotReady
	}

	return c.latest, nil
}
