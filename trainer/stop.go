package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/faisalnazir/rllab/pkg/mqtt"
)

var stopTopicTemplate = "channels/%s/messages/control/trainer/stop"

// StopBroadcaster propagates the trainer's terminal transition so rollout
// workers move to Stopped at their next episode boundary.
type StopBroadcaster interface {
	Broadcast(ctx context.Context) error
}

type stopMessage struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTStopBroadcaster announces the stop on the control topic workers
// subscribe to.
type MQTTStopBroadcaster struct {
	pubsub mqtt.PubSub
	topic  string
}

func NewMQTTStopBroadcaster(pubsub mqtt.PubSub, channelID string) *MQTTStopBroadcaster {
	return &MQTTStopBroadcaster{
		pubsub: pubsub,
		topic:  fmt.Sprintf(stopTopicTemplate, channelID),
	}
}

func (b *MQTTStopBroadcaster) Broadcast(ctx context.Context) error {
	return b.pubsub.Publish(ctx, b.topic, stopMessage{
		Reason:    "training finished",
		Timestamp: time.Now(),
	})
}

// SubscribeStop registers a worker-side callback for the stop broadcast.
func SubscribeStop(ctx context.Context, pubsub mqtt.PubSub, channelID string, onStop func()) error {
	topic := fmt.Sprintf(stopTopicTemplate, channelID)

	return pubsub.Subscribe(ctx, topic, func(_ string, _ map[string]any) error {
		onStop()

		return nil
	})
}
