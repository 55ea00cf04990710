package domain

import "time"

// SweepStatus enumerates the bounce sweep lifecycle.
type SweepStatus string

const (
	SweepStopped SweepStatus = "stopped"
	SweepRunning SweepStatus = "running"
	SweepPaused  SweepStatus = "paused"
)

// SweepState is the persisted progress of a bounce sweep over one scope.
// Exactly one row exists per scope; the cursor is saved before each batch
// so a crash loses at most one in-flight batch.
type SweepState struct {
	Scope        string      `json:"scope" db:"scope"` // list id or "all"
	Status       SweepStatus `json:"status" db:"status"`
	Cursor       int         `json:"cursor" db:"cursor"`
	CheckedCount int         `json:"checked_count" db:"checked_count"`
	TotalCount   int         `json:"total_count" db:"total_count"`
	BounceCount  int         `json:"bounce_count" db:"bounce_count"`
	ExternalMX   bool        `json:"external_mx" db:"external_mx"`
	BatchSize    int         `json:"batch_size" db:"batch_size"`
	StartedAt    *time.Time  `json:"started_at" db:"started_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Finished reports whether the cursor has consumed the whole scope.
func (s SweepState) Finished() bool {
	return s.TotalCount > 0 && s.Cursor >= s.TotalCount
}

// BounceRate returns bounces found per contact checked, 0 when nothing
// has been checked yet.
func (s SweepState) BounceRate() float64 {
	if s.CheckedCount == 0 {
		return 0
	}
	return float64(s.BounceCount) / float64(s.CheckedCount)
}

// SweepSummary is one line of sweep history, recorded when a sweep stops.
type SweepSummary struct {
	ID           int64       `json:"id" db:"id"`
	Scope        string      `json:"scope" db:"scope"`
	CheckedCount int         `json:"checked_count" db:"checked_count"`
	TotalCount   int         `json:"total_count" db:"total_count"`
	BounceCount  int         `json:"bounce_count" db:"bounce_count"`
	Completed    bool        `json:"completed" db:"completed"` // false when stopped early
	StartedAt    *time.Time  `json:"started_at" db:"started_at"`
	EndedAt      time.Time   `json:"ended_at" db:"ended_at"`
}
