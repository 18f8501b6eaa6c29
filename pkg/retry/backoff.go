package retry

import "time"

// BackoffStrategy defines the interface for backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the next delay duration
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// ConstantBackoff implements constant delay backoff. The harvester retries
// transient upstream failures exactly once after a fixed pause, so this is
// the only strategy in use.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Reset resets the backoff to initial state
func (cb *ConstantBackoff) Reset() {
	// Constant backoff doesn't need to track state
}
