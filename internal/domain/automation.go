package domain

import "time"

// AutomationConfig holds the per-kind automation settings. One row per
// campaign kind; loaded on every scheduler tick, persisted on every
// mutation.
type AutomationConfig struct {
	Kind          CampaignKind `json:"kind" db:"kind"`
	Enabled       bool         `json:"enabled" db:"enabled"`
	StartTime     string       `json:"start_time" db:"start_time"` // "HH:MM", local to the engine
	PacingSeconds int          `json:"pacing_seconds" db:"pacing_seconds"`
	Scope         RenewalScope `json:"scope,omitempty" db:"scope"` // renewal only
	LastAutoRunAt *time.Time   `json:"last_auto_run_at" db:"last_auto_run_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// DueAt reports whether the daily auto trigger should fire at now: the
// toggle is on, today's start time has passed, and no auto run has fired
// since the start of today.
func (c AutomationConfig) DueAt(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	start, err := time.ParseInLocation("15:04", c.StartTime, now.Location())
	if err != nil {
		return false
	}
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	if now.Before(todayStart) {
		return false
	}
	if c.LastAutoRunAt == nil {
		return true
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return c.LastAutoRunAt.Before(midnight)
}
