package episode

import (
	"time"

	"github.com/google/uuid"

	"github.com/faisalnazir/rllab/pkg/errors"
)

// TerminalReason records why an episode ended.
type TerminalReason uint8

const (
	// OffTrack means the vehicle left the drivable surface.
	OffTrack TerminalReason = iota
	// Completed means the vehicle finished the lap.
	Completed
	// Timeout means the per-episode step or wall-clock limit was hit.
	Timeout
)

func (r TerminalReason) String() string {
	switch r {
	case OffTrack:
		return "off-track"
	case Completed:
		return "completed"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Step is a single simulator transition recorded during a rollout.
type Step struct {
	Observation []float64 `json:"observation"`
	Action      int       `json:"action"`
	Reward      float64   `json:"reward"`
	Done        bool      `json:"done"`
}

// Episode is one complete attempt to drive the track under a fixed policy
// version. It is created open, accumulates steps, and is sealed exactly
// once when the episode ends. Only sealed episodes may cross the
// experience channel; a sealed episode is immutable.
type Episode struct {
	ID                   string         `json:"id"`
	WorkerID             string         `json:"worker_id"`
	PolicyVersion        int64          `json:"policy_version"`
	Steps                []Step         `json:"steps"`
	TotalReward          float64        `json:"total_reward"`
	StepCount            int            `json:"step_count"`
	Terminal             TerminalReason `json:"terminal"`
	CompletionPercentage float64        `json:"completion_percentage"`
	StartedAt            time.Time      `json:"started_at"`
	SealedAt             time.Time      `json:"sealed_at"`
	sealed               bool
}

// New opens an episode for the given worker and policy version.
func New(workerID string, policyVersion int64) *Episode {
	return &Episode{
		ID:            uuid.NewString(),
		WorkerID:      workerID,
		PolicyVersion: policyVersion,
		StartedAt:     time.Now(),
	}
}

// Append records one step. Appending to a sealed episode is a programming
// error and is rejected.
func (e *Episode) Append(s Step) error {
	if e.sealed {
		return errors.ErrInvalidData
	}

	e.Steps = append(e.Steps, s)
	e.StepCount++
	e.TotalReward += s.Reward

	return nil
}

// Seal freezes the episode with its terminal reason and completion
// percentage. Sealing twice is a no-op.
func (e *Episode) Seal(reason TerminalReason, completion float64) {
	if e.sealed {
		return
	}

	e.Terminal = reason
	e.CompletionPercentage = completion
	e.SealedAt = time.Now()
	e.sealed = true
}

// Sealed reports whether the episode has been sealed.
func (e *Episode) Sealed() bool {
	return e.sealed
}

// ElapsedTime is the wall-clock duration of the episode. It is only
// meaningful on sealed episodes.
func (e *Episode) ElapsedTime() time.Duration {
	return e.SealedAt.Sub(e.StartedAt)
}

// MarkSealed restores the sealed flag on an episode decoded from the
// wire. The unexported flag does not survive JSON round-trips, and the
// channel bridges only ever transport sealed episodes.
func (e *Episode) MarkSealed() {
	if !e.SealedAt.IsZero() {
		e.sealed = true
	}
}
