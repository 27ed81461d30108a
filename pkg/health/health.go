package health

import (
	"context"
	"time"
)

// Result represents the outcome of one probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes one endpoint
type Checker interface {
	Check(ctx context.Context) Result
}

// Config controls how probe results turn into a health verdict
type Config struct {
	// Interval is the time between probes
	Interval time.Duration

	// Timeout bounds one probe
	Timeout time.Duration

	// Retries is the number of consecutive failures before the
	// endpoint is considered down
	Retries int
}

// DefaultConfig returns the configuration used for replication peers
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  2 * time.Second,
		Retries:  3,
	}
}

// Status accumulates probe results for one endpoint
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastResult           Result

	// Healthy is the current verdict. A new endpoint is down until the
	// first successful probe.
	Healthy bool
}

// Update folds a new result into the status and reports whether the
// verdict changed
func (s *Status) Update(result Result, config Config) bool {
	before := s.Healthy
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
	return s.Healthy != before
}
