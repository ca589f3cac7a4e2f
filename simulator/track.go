package simulator

import (
	"math"
	"math/rand"
)

const (
	trackLength    = 120.0
	trackHalfWidth = 1.2
	speed          = 4.0
	dt             = 0.05
	steerDelta     = 0.06
	curveAmplitude = 0.04
	curvePeriod    = 30.0
	maxTrackSteps  = 1200
)

// Actions understood by the track environment.
const (
	SteerLeft = iota
	SteerStraight
	SteerRight
)

// Track is a small centerline-following environment: the vehicle moves at
// constant speed along a curving track and the policy picks discrete
// steering corrections. It exists so the repository runs end to end
// without an external simulator; production deployments inject their own
// Simulator.
type Track struct {
	progress float64 // distance travelled along the centerline
	offset   float64 // signed lateral distance from the centerline
	heading  float64 // heading error relative to the centerline tangent
	steps    int
	rng      *rand.Rand
}

func NewTrack(rng *rand.Rand) *Track {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	t := &Track{rng: rng}
	t.Reset()

	return t
}

func (t *Track) Reset() []float64 {
	t.progress = 0
	t.offset = t.rng.Float64()*0.2 - 0.1
	t.heading = t.rng.Float64()*0.1 - 0.05
	t.steps = 0

	return t.observation()
}

func (t *Track) Step(action int) ([]float64, float64, bool) {
	steer := 0.0
	switch action {
	case SteerLeft:
		steer = -steerDelta
	case SteerRight:
		steer = steerDelta
	}

	t.heading += steer - t.curvature()*speed*dt
	t.offset += math.Sin(t.heading) * speed * dt
	advance := math.Cos(t.heading) * speed * dt
	if advance > 0 {
		t.progress += advance
	}
	t.steps++

	offTrack := math.Abs(t.offset) > trackHalfWidth
	finished := t.progress >= trackLength
	done := offTrack || finished || t.steps >= maxTrackSteps

	reward := advance / speed / dt * (1 - math.Abs(t.offset)/trackHalfWidth)
	if offTrack {
		reward = 0
	}

	return t.observation(), reward, done
}

// Progress reports lap completion in [0, 1].
func (t *Track) Progress() float64 {
	p := t.progress / trackLength
	if p > 1 {
		return 1
	}

	return p
}

func (t *Track) curvature() float64 {
	return curveAmplitude * math.Sin(2*math.Pi*t.progress/curvePeriod)
}

func (t *Track) observation() []float64 {
	return []float64{t.offset, t.heading, speed, t.curvature()}
}
