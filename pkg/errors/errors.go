package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")

	// ErrOverflow indicates the experience channel buffer is full.
	// Producers treat it as retryable, not as data loss.
	ErrOverflow = errors.New("experience channel overflow")

	// ErrNotReady indicates no policy version has ever been published.
	ErrNotReady = errors.New("no policy version published")

	// ErrNotSealed indicates an attempt to publish an unsealed episode.
	ErrNotSealed = errors.New("episode is not sealed")

	// ErrStaleExperience indicates an episode generated under a policy
	// version lagging the trainer beyond the configured tolerance.
	ErrStaleExperience = errors.New("stale experience")

	// ErrVersionConflict indicates a republish of an existing policy
	// version id with different weights.
	ErrVersionConflict = errors.New("policy version conflict")

	// ErrRetryBudgetExhausted indicates a channel operation failed more
	// times than the configured retry budget allows.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrInvalidConfig indicates the persisted configuration failed
	// validation at startup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoActiveWorkers indicates every known rollout worker has failed,
	// stopped or gone offline while experience is still expected.
	ErrNoActiveWorkers = errors.New("no active rollout workers")
)
