package simulator

// Simulator is the external environment collaborator. The core treats it
// as opaque: it resets to an initial observation and advances one step at
// a time under chosen actions.
type Simulator interface {
	Reset() []float64
	Step(action int) (observation []float64, reward float64, done bool)
}

// ProgressReporter is optionally implemented by environments that can
// report lap completion as a fraction in [0, 1]. The rollout worker uses
// it for the completion_percentage episode metric when available.
type ProgressReporter interface {
	Progress() float64
}
