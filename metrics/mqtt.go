package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/faisalnazir/rllab/pkg/mqtt"
)

var metricsTopicTemplate = "channels/%s/messages/metrics/records"

// MQTTRecorder forwards records from a worker process to the trainer-side
// aggregator over the metrics topic. Delivery is best effort and off the
// training loop's critical path; a failed publish costs a record, not an
// episode.
type MQTTRecorder struct {
	pubsub mqtt.PubSub
	topic  string
	logger *slog.Logger
}

func NewMQTTRecorder(pubsub mqtt.PubSub, channelID string, logger *slog.Logger) *MQTTRecorder {
	return &MQTTRecorder{
		pubsub: pubsub,
		topic:  fmt.Sprintf(metricsTopicTemplate, channelID),
		logger: logger,
	}
}

func (r *MQTTRecorder) Record(rec Record) {
	if err := r.pubsub.Publish(context.Background(), r.topic, rec); err != nil {
		r.logger.Warn("failed to publish metric record", slog.Any("error", err))
	}
}

// Sink subscribes the aggregator to the metrics topic.
type Sink struct {
	agg *Aggregator
}

func NewSink(agg *Aggregator) *Sink {
	return &Sink{agg: agg}
}

func (s *Sink) Subscribe(ctx context.Context, pubsub mqtt.PubSub, channelID string) error {
	topic := fmt.Sprintf(metricsTopicTemplate, channelID)

	return pubsub.Subscribe(ctx, topic, s.handle)
}

func (s *Sink) handle(topic string, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	s.agg.Record(rec)

	return nil
}
