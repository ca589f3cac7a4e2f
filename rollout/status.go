package rollout

import (
	"context"
	"fmt"

	"github.com/faisalnazir/rllab/pkg/mqtt"
)

var statusTopicTemplate = "channels/%s/messages/control/worker/status"

// State is the rollout worker's lifecycle position.
type State uint8

const (
	Idle State = iota
	FetchingPolicy
	RunningEpisode
	Reporting
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case FetchingPolicy:
		return "FetchingPolicy"
	case RunningEpisode:
		return "RunningEpisode"
	case Reporting:
		return "Reporting"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StatusReporter carries worker status upward: a periodic alive message
// while the worker runs, and its terminal state when it stops producing.
// A worker never stops producing without a report going through it.
type StatusReporter interface {
	Report(ctx context.Context, workerID string, state State, cause error) error
}

type statusMessage struct {
	WorkerID string `json:"worker_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// MQTTStatusReporter publishes worker status on the control topic the
// trainer side watches; the broker's last-will message on the same topic
// covers workers that die without reporting.
type MQTTStatusReporter struct {
	pubsub mqtt.PubSub
	topic  string
}

func NewMQTTStatusReporter(pubsub mqtt.PubSub, channelID string) *MQTTStatusReporter {
	return &MQTTStatusReporter{
		pubsub: pubsub,
		topic:  fmt.Sprintf(statusTopicTemplate, channelID),
	}
}

func (r *MQTTStatusReporter) Report(ctx context.Context, workerID string, state State, cause error) error {
	msg := statusMessage{
		WorkerID: workerID,
		Status:   state.String(),
	}
	if cause != nil {
		msg.Error = cause.Error()
	}

	return r.pubsub.Publish(ctx, r.topic, msg)
}
