package job

import "time"

type State uint8

const (
	Pending State = iota
	Running
	Converged
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Converged:
		return "Converged"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state is final. Terminal states are the
// only externally observable outcomes of a training run.
func (s State) Terminal() bool {
	switch s {
	case Converged, Cancelled, Failed:
		return true
	default:
		return false
	}
}

// Job stores metadata and live counters for one training run.
type Job struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Iteration       int64     `json:"iteration"`
	EpisodesSeen    int64     `json:"episodes_seen"`
	EpisodesDropped int64     `json:"episodes_dropped"`
	PolicyVersion   int64     `json:"policy_version"`
	Error           string    `json:"error,omitempty"`
	StartTime       time.Time `json:"start_time"`
	FinishTime      time.Time `json:"finish_time"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
