package config

import (
	"time"
)

// Limits bounds the reasoning loop and the pacing of external reasoning
// calls.
type Limits struct {
	MaxIterations int             `yaml:"max_iterations" validate:"min=0,max=1000"`
	RetryAttempts int             `yaml:"retry_attempts" validate:"min=0,max=10"`
	RetryBackoff  time.Duration   `yaml:"retry_backoff" validate:"min=0"`
	TotalTimeout  time.Duration   `yaml:"total_timeout" validate:"min=0"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

// DefaultLimits returns the engine defaults. A zero MaxIterations means
// unbounded; a zero TotalTimeout means no wall-clock budget.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations: 10,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
		TotalTimeout:  0,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         15,
		},
	}
}
