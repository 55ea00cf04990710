// Package pacing turns a candidate list into a time-ordered send schedule.
//
// Schedule is a pure function: no I/O, no clock reads. Dry runs and real
// runs compute the exact same schedule from the same inputs, which is what
// makes dry-run/real-run parity testable.
package pacing

import (
	"fmt"
	"time"
)

// Bounds clamp pacing values accepted from configuration and run requests.
const (
	MinConfigPacing = 5 * time.Second
	MaxConfigPacing = 600 * time.Second
	MaxRunPacing    = 900 * time.Second
	DefaultPacing   = 40 * time.Second
)

// ValidationError reports a rejected pacing or schedule input. Handlers map
// it to a 400 response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Slot pairs one candidate index with its dispatch time.
type Slot struct {
	Index       int       `json:"index"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// ValidateRunPacing checks a per-run pacing override. Zero and negative
// intervals are rejected; values above MaxRunPacing are clamped.
func ValidateRunPacing(p time.Duration) (time.Duration, error) {
	if p <= 0 {
		return 0, &ValidationError{Field: "pacing", Reason: "pacing interval must be positive"}
	}
	if p > MaxRunPacing {
		return MaxRunPacing, nil
	}
	return p, nil
}

// ClampConfigPacing forces a stored automation pacing into config bounds.
func ClampConfigPacing(p time.Duration) time.Duration {
	if p < MinConfigPacing {
		return MinConfigPacing
	}
	if p > MaxConfigPacing {
		return MaxConfigPacing
	}
	return p
}

// Schedule assigns the i-th of n candidates the dispatch time t0 + i*p.
// The returned slice has exactly n slots in candidate order.
func Schedule(n int, p time.Duration, t0 time.Time) ([]Slot, error) {
	if p <= 0 {
		return nil, &ValidationError{Field: "pacing", Reason: "pacing interval must be positive"}
	}
	slots := make([]Slot, n)
	for i := 0; i < n; i++ {
		slots[i] = Slot{Index: i, ScheduledAt: t0.Add(time.Duration(i) * p)}
	}
	return slots, nil
}
