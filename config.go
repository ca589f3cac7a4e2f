package rllab

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/faisalnazir/rllab/pkg/errors"
)

// Hyperparameters is the persisted training configuration, loaded once at
// startup. There are no silent defaults for batch acceptance or staleness:
// a file that omits them fails validation and the job never enters
// Running.
type Hyperparameters struct {
	Trainer TrainerConfig `toml:"trainer"`
	Rollout RolloutConfig `toml:"rollout"`
	Retry   RetryConfig   `toml:"retry"`
}

type TrainerConfig struct {
	MinBatchSize      int           `toml:"min_batch_size"`
	MaxBatchSize      int           `toml:"max_batch_size"`
	MaxBatchWait      time.Duration `toml:"max_batch_wait"`
	StaleLagTolerance int64         `toml:"stale_lag_tolerance"`
	LearningRate      float64       `toml:"learning_rate"`

	// Convergence. A zero threshold or window disables the reward check;
	// zero caps disable the iteration/episode limits. With everything
	// disabled the job runs until externally cancelled.
	RewardThreshold   float64 `toml:"reward_threshold"`
	ConvergenceWindow int     `toml:"convergence_window"`
	MaxIterations     int64   `toml:"max_iterations"`
	MaxEpisodes       int64   `toml:"max_episodes"`

	// Backpressure.
	ChannelCapacity int `toml:"channel_capacity"`
	HighWaterMark   int `toml:"high_water_mark"`
	RecentVersions  int `toml:"recent_versions"`
}

type RolloutConfig struct {
	MaxStepsPerEpisode int           `toml:"max_steps_per_episode"`
	EpisodeTimeout     time.Duration `toml:"episode_timeout"`
	PolicyStaleness    time.Duration `toml:"policy_staleness"`
	AliveInterval      time.Duration `toml:"alive_interval"`
}

type RetryConfig struct {
	Budget          int           `toml:"budget"`
	InitialInterval time.Duration `toml:"initial_interval"`
	MaxInterval     time.Duration `toml:"max_interval"`
}

func LoadHyperparameters(path string) (*Hyperparameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Hyperparameters
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Hyperparameters) Validate() error {
	if c.Trainer.MinBatchSize <= 0 {
		return fmt.Errorf("%w: trainer.min_batch_size must be positive", errors.ErrInvalidConfig)
	}
	if c.Trainer.MaxBatchSize < c.Trainer.MinBatchSize {
		return fmt.Errorf("%w: trainer.max_batch_size must be at least min_batch_size", errors.ErrInvalidConfig)
	}
	if c.Trainer.MaxBatchWait <= 0 {
		return fmt.Errorf("%w: trainer.max_batch_wait must be positive", errors.ErrInvalidConfig)
	}
	if c.Trainer.StaleLagTolerance < 0 {
		return fmt.Errorf("%w: trainer.stale_lag_tolerance must not be negative", errors.ErrInvalidConfig)
	}
	if c.Trainer.LearningRate <= 0 {
		return fmt.Errorf("%w: trainer.learning_rate must be positive", errors.ErrInvalidConfig)
	}
	if c.Trainer.RewardThreshold != 0 && c.Trainer.ConvergenceWindow <= 0 {
		return fmt.Errorf("%w: trainer.convergence_window is required with a reward threshold", errors.ErrInvalidConfig)
	}
	if c.Trainer.ChannelCapacity <= 0 {
		return fmt.Errorf("%w: trainer.channel_capacity must be positive", errors.ErrInvalidConfig)
	}
	if c.Trainer.HighWaterMark <= 0 || c.Trainer.HighWaterMark > c.Trainer.ChannelCapacity {
		return fmt.Errorf("%w: trainer.high_water_mark must be positive and within channel capacity", errors.ErrInvalidConfig)
	}
	if c.Trainer.RecentVersions <= 0 {
		return fmt.Errorf("%w: trainer.recent_versions must be positive", errors.ErrInvalidConfig)
	}
	if c.Rollout.MaxStepsPerEpisode <= 0 {
		return fmt.Errorf("%w: rollout.max_steps_per_episode must be positive", errors.ErrInvalidConfig)
	}
	if c.Rollout.EpisodeTimeout <= 0 {
		return fmt.Errorf("%w: rollout.episode_timeout must be positive", errors.ErrInvalidConfig)
	}
	if c.Rollout.PolicyStaleness < 0 {
		return fmt.Errorf("%w: rollout.policy_staleness must not be negative", errors.ErrInvalidConfig)
	}
	if c.Rollout.AliveInterval <= 0 {
		return fmt.Errorf("%w: rollout.alive_interval must be positive", errors.ErrInvalidConfig)
	}
	if c.Retry.Budget <= 0 {
		return fmt.Errorf("%w: retry.budget must be positive", errors.ErrInvalidConfig)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("%w: retry intervals must be positive and ordered", errors.ErrInvalidConfig)
	}

	return nil
}
