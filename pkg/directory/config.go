package directory

import "fmt"

// Config holds the directory configuration.
type Config struct {
	// UseCache enables the cache for point operations. When false the
	// directory behaves as if no cache existed.
	UseCache bool

	// MaxRateAttempts bounds how often a rating is re-read and recomputed
	// after losing a conditional update to a concurrent submission.
	MaxRateAttempts int
}

// DefaultConfig returns the default configuration with caching enabled.
func DefaultConfig() Config {
	return Config{
		UseCache:        true,
		MaxRateAttempts: 3,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.MaxRateAttempts < 1 {
		return fmt.Errorf("max_rate_attempts must be >= 1 (got %d)", c.MaxRateAttempts)
	}
	return nil
}
