package trainer

// convergenceTracker watches a trailing window of per-iteration mean
// rewards. The job converges once every iteration in a full window meets
// the threshold; with a zero threshold or window the tracker never fires.
type convergenceTracker struct {
	threshold float64
	window    int
	rewards   []float64
}

func newConvergenceTracker(threshold float64, window int) *convergenceTracker {
	return &convergenceTracker{
		threshold: threshold,
		window:    window,
	}
}

func (t *convergenceTracker) Observe(meanReward float64) {
	if t.window <= 0 {
		return
	}

	t.rewards = append(t.rewards, meanReward)
	if len(t.rewards) > t.window {
		t.rewards = t.rewards[len(t.rewards)-t.window:]
	}
}

func (t *convergenceTracker) Satisfied() bool {
	if t.threshold == 0 || t.window <= 0 || len(t.rewards) < t.window {
		return false
	}

	for _, r := range t.rewards {
		if r < t.threshold {
			return false
		}
	}

	return true
}
