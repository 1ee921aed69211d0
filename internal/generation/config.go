// Package generation tags blob identifiers with the time window they were
// created in, so the garbage collector can tell a blob's age from its id
// alone.
//
// A tagged id serializes as "{family}_{generation}_{delegate}" where
// generation is floor(epochSeconds / durationSeconds). Ids minted before
// tagging existed, or by another family, decode with [NoFamily] and
// [NoGeneration].
package generation

import (
	"errors"
	"fmt"
	"time"
)

const (
	// NoFamily marks an id without generation tagging.
	NoFamily = 0

	// NoGeneration is the generation of untagged ids.
	NoGeneration int64 = 0

	// DefaultFamily is the family used when none is configured.
	DefaultFamily = 1

	// DefaultDuration is the default generation window width.
	DefaultDuration = 30 * 24 * time.Hour
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("generation: invalid configuration")

// Config defines the generation window for one family.
type Config struct {
	// Duration is the width of a generation window. Must be at least one second.
	// Default: 720h (30 days)
	Duration time.Duration `yaml:"duration"`

	// Family namespaces independent configurations sharing one backend.
	// Must be positive.
	// Default: 1
	Family int `yaml:"family"`
}

// DefaultConfig returns the default generation configuration.
func DefaultConfig() Config {
	return Config{
		Duration: DefaultDuration,
		Family:   DefaultFamily,
	}
}

// NewConfig builds and validates a configuration.
func NewConfig(duration time.Duration, family int) (Config, error) {
	cfg := Config{Duration: duration, Family: family}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the duration is at least one second and the family is positive.
func (c Config) Validate() error {
	if c.Duration < time.Second {
		return fmt.Errorf("%w: duration must be at least 1s, got %s", ErrInvalidConfig, c.Duration)
	}
	if c.Family <= 0 {
		return fmt.Errorf("%w: family must be positive, got %d", ErrInvalidConfig, c.Family)
	}
	return nil
}

func (c Config) durationSeconds() int64 {
	return int64(c.Duration / time.Second)
}

// ComputeGeneration returns the generation window that contains now.
func ComputeGeneration(cfg Config, now time.Time) int64 {
	epoch := now.Unix()
	if epoch < 0 {
		return NoGeneration
	}
	return epoch / cfg.durationSeconds()
}
