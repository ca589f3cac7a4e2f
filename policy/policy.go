package policy

import (
	"math"
	"math/rand"
	"time"
)

// ObservationSize is the length of the observation vector the built-in
// track environment produces: lateral offset, heading error, speed and
// upcoming curvature.
const ObservationSize = 4

// ActionCount covers the discrete steering actions: left, straight, right.
const ActionCount = 3

// Weights is the opaque parameter blob distributed to rollout workers. The
// default implementation is a linear softmax head over the observation;
// anything that serializes to the same shape can be carried instead.
type Weights struct {
	W [][]float64 `json:"w"` // [ActionCount][ObservationSize]
	B []float64   `json:"b"` // [ActionCount]
}

// Version is one immutable published policy. Ids increase monotonically
// and are assigned exclusively by the trainer.
type Version struct {
	ID        int64     `json:"id"`
	Weights   Weights   `json:"weights"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultWeights returns the initial pre-training parameters.
func DefaultWeights() Weights {
	w := make([][]float64, ActionCount)
	for i := range w {
		w[i] = make([]float64, ObservationSize)
	}

	return Weights{
		W: w,
		B: make([]float64, ActionCount),
	}
}

// Clone deep-copies the weights so a new version never aliases the blob
// the optimizer mutates.
func (w Weights) Clone() Weights {
	cw := make([][]float64, len(w.W))
	for i := range w.W {
		cw[i] = append([]float64(nil), w.W[i]...)
	}

	return Weights{
		W: cw,
		B: append([]float64(nil), w.B...),
	}
}

// Equal reports whether two weight blobs are identical. Used for the
// idempotent-republish check on the distribution channel.
func (w Weights) Equal(other Weights) bool {
	if len(w.W) != len(other.W) || len(w.B) != len(other.B) {
		return false
	}
	for i := range w.W {
		if len(w.W[i]) != len(other.W[i]) {
			return false
		}
		for j := range w.W[i] {
			if w.W[i][j] != other.W[i][j] {
				return false
			}
		}
	}
	for i := range w.B {
		if w.B[i] != other.B[i] {
			return false
		}
	}

	return true
}

// Probabilities returns the softmax action distribution for an
// observation.
func (w Weights) Probabilities(observation []float64) []float64 {
	logits := make([]float64, len(w.W))
	for i := range w.W {
		logits[i] = w.B[i]
		for j := 0; j < len(observation) && j < len(w.W[i]); j++ {
			logits[i] += w.W[i][j] * observation[j]
		}
	}

	return softmax(logits)
}

// Action samples an action from the policy for an observation.
func (w Weights) Action(observation []float64, rng *rand.Rand) int {
	probs := w.Probabilities(observation)
	threshold := rng.Float64()
	var cumulative float64
	for i, p := range probs {
		cumulative += p
		if threshold <= cumulative {
			return i
		}
	}

	return len(probs) - 1
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	values := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		values[i] = math.Exp(v - maxLogit)
		sum += values[i]
	}
	for i := range values {
		values[i] /= sum
	}

	return values
}
