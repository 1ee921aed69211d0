package cache

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultSizeThresholdInBytes is the largest payload cached by SizeBased saves.
	DefaultSizeThresholdInBytes = 8 * 1024

	// DefaultTimeout bounds cache reads.
	DefaultTimeout = 100 * time.Millisecond

	// DefaultTTL is the lifetime of a cache entry.
	DefaultTTL = 7 * 24 * time.Hour

	// MaxTimeout is the largest accepted read timeout.
	MaxTimeout = time.Hour

	// MaxTTL is the largest TTL representable by cache backends that store
	// lifetimes as 32-bit seconds.
	MaxTTL = time.Duration(math.MaxInt32) * time.Second
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("cache: invalid configuration")

// Config controls cache admission and lifetimes.
type Config struct {
	// SizeThresholdInBytes is the largest payload admitted under the
	// SizeBased policy and the largest payload populated on read.
	// Default: 8192
	SizeThresholdInBytes int64 `yaml:"sizeThresholdInBytes"`

	// Timeout bounds a single cache read. Must be in (0, 1h].
	// Default: 100ms
	Timeout time.Duration `yaml:"timeout"`

	// TTL is the lifetime of an entry. Must be in (0, MaxInt32 seconds].
	// Default: 168h
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		SizeThresholdInBytes: DefaultSizeThresholdInBytes,
		Timeout:              DefaultTimeout,
		TTL:                  DefaultTTL,
	}
}

// NewConfig builds and validates a configuration.
func NewConfig(sizeThreshold int64, timeout, ttl time.Duration) (Config, error) {
	cfg := Config{
		SizeThresholdInBytes: sizeThreshold,
		Timeout:              timeout,
		TTL:                  ttl,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects negative thresholds and non-positive or overflowing durations.
func (c Config) Validate() error {
	if c.SizeThresholdInBytes < 0 {
		return fmt.Errorf("%w: sizeThresholdInBytes must not be negative, got %d", ErrInvalidConfig, c.SizeThresholdInBytes)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.Timeout > MaxTimeout {
		return fmt.Errorf("%w: timeout must not exceed %s, got %s", ErrInvalidConfig, MaxTimeout, c.Timeout)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidConfig, c.TTL)
	}
	if c.TTL > MaxTTL {
		return fmt.Errorf("%w: ttl must not exceed %d seconds, got %s", ErrInvalidConfig, math.MaxInt32, c.TTL)
	}
	return nil
}
