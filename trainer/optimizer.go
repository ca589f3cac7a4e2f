package trainer

import (
	"context"

	"github.com/faisalnazir/rllab/episode"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/policy"
)

// Optimizer turns an accepted batch into the next set of policy weights.
// The actual network and policy-gradient machinery are external
// collaborators; Reinforce below is the built-in default that keeps the
// repository runnable end to end.
type Optimizer interface {
	Update(ctx context.Context, current policy.Version, batch []*episode.Episode) (policy.Weights, error)
}

// Reinforce is a policy-gradient update for the linear softmax weight
// blob, using the batch-mean return as baseline. Gradients are computed
// against the weights each episode was generated under when the
// distribution channel still retains them, falling back to the current
// version otherwise.
type Reinforce struct {
	learningRate float64
	policies     channel.Policy
}

func NewReinforce(learningRate float64, policies channel.Policy) *Reinforce {
	return &Reinforce{
		learningRate: learningRate,
		policies:     policies,
	}
}

func (o *Reinforce) Update(ctx context.Context, current policy.Version, batch []*episode.Episode) (policy.Weights, error) {
	next := current.Weights.Clone()
	if len(batch) == 0 {
		return next, nil
	}

	var baseline float64
	for _, ep := range batch {
		baseline += ep.TotalReward
	}
	baseline /= float64(len(batch))

	for _, ep := range batch {
		weights := current.Weights
		if o.policies != nil {
			if v, err := o.policies.Fetch(ctx, ep.PolicyVersion); err == nil {
				weights = v.Weights
			}
		}

		advantage := ep.TotalReward - baseline
		scale := o.learningRate * advantage / float64(len(batch))

		for _, step := range ep.Steps {
			probs := weights.Probabilities(step.Observation)
			for a := range next.W {
				indicator := 0.0
				if a == step.Action {
					indicator = 1.0
				}
				coeff := scale * (indicator - probs[a])
				for j := 0; j < len(step.Observation) && j < len(next.W[a]); j++ {
					next.W[a][j] += coeff * step.Observation[j]
				}
				next.B[a] += coeff
			}
		}
	}

	return next, nil
}
