package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/faisalnazir/rllab/pkg/mqtt"
)

var workerStatusTopicTemplate = "channels/%s/messages/control/worker/status"

type workerStatus struct {
	status string
	seen   time.Time
}

// WorkerRegistry tracks the last reported status of every rollout worker
// seen on the control topic: the periodic alive messages, terminal
// reports, and broker last-will "offline" messages from workers that died
// silently. The coordinator consults it to tell a quiet channel apart
// from a fleet that is entirely gone.
type WorkerRegistry struct {
	mu             sync.RWMutex
	workers        map[string]workerStatus
	livenessWindow time.Duration
}

// NewWorkerRegistry builds a registry. A worker whose last non-terminal
// report is older than the liveness window counts as unreachable; a zero
// window disables the recency check, which single-process wirings use
// since their workers cannot vanish silently.
func NewWorkerRegistry(livenessWindow time.Duration) *WorkerRegistry {
	return &WorkerRegistry{
		workers:        make(map[string]workerStatus),
		livenessWindow: livenessWindow,
	}
}

func (r *WorkerRegistry) Subscribe(ctx context.Context, pubsub mqtt.PubSub, channelID string) error {
	topic := fmt.Sprintf(workerStatusTopicTemplate, channelID)

	return pubsub.Subscribe(ctx, topic, r.handle)
}

func (r *WorkerRegistry) handle(_ string, msg map[string]any) error {
	id, ok := msg["worker_id"].(string)
	if !ok || id == "" {
		return nil
	}
	status, ok := msg["status"].(string)
	if !ok {
		return nil
	}

	r.Observe(id, status)

	return nil
}

// Observe records a worker status directly; single-process wirings use it
// in place of the MQTT subscription.
func (r *WorkerRegistry) Observe(workerID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workers[workerID] = workerStatus{
		status: status,
		seen:   time.Now(),
	}
}

// Workers returns the known worker ids and their last statuses.
func (r *WorkerRegistry) Workers() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.workers))
	for k, ws := range r.workers {
		out[k] = ws.status
	}

	return out
}

// AllUnreachable reports whether every known worker is gone: Failed,
// Stopped, offline, or silent beyond the liveness window. It is false
// until at least one worker has reported, and a single recently-alive
// worker keeps the fleet reachable regardless of how many others have
// failed.
func (r *WorkerRegistry) AllUnreachable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.workers) == 0 {
		return false
	}

	now := time.Now()
	for _, ws := range r.workers {
		switch ws.status {
		case "Failed", "Stopped", "offline":
		default:
			if r.livenessWindow <= 0 || now.Sub(ws.seen) <= r.livenessWindow {
				return false
			}
		}
	}

	return true
}
