package domain

import (
	"time"
)

// CampaignKind enumerates the supported outreach campaign categories.
type CampaignKind string

const (
	KindBirthday CampaignKind = "birthday"
	KindRenewal  CampaignKind = "renewal"
)

// ValidKind reports whether k names a known campaign kind.
func ValidKind(k CampaignKind) bool {
	return k == KindBirthday || k == KindRenewal
}

// TriggerMode enumerates how a campaign run was started.
type TriggerMode string

const (
	TriggerManual    TriggerMode = "manual"
	TriggerAuto      TriggerMode = "auto"
	TriggerScheduled TriggerMode = "scheduled"
	TriggerDryRun    TriggerMode = "dry_run"
)

// RunStatus enumerates the lifecycle states of a campaign run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RenewalScope selects which renewal years a run targets.
type RenewalScope string

const (
	ScopeCurrentYear RenewalScope = "current"
	ScopeAllYears    RenewalScope = "all"
)

// CampaignRun represents one execution of a campaign kind, manual or
// automated, real or simulated.
type CampaignRun struct {
	ID            string       `json:"id" db:"id"`
	Kind          CampaignKind `json:"kind" db:"kind"`
	Trigger       TriggerMode  `json:"trigger" db:"trigger_mode"`
	Scope         RenewalScope `json:"scope,omitempty" db:"scope"`
	PacingSeconds int          `json:"pacing_seconds" db:"pacing_seconds"`
	Status        RunStatus    `json:"status" db:"status"`

	// Counters are derived from the run's log entries and must reconcile:
	// TotalCandidates = Sent + Failed + SkippedDuplicate + SkippedNoPhone
	// (+ Simulated on dry runs, + items still pending on a paced run).
	TotalCandidates  int `json:"total_candidates" db:"total_candidates"`
	Sent             int `json:"sent" db:"sent"`
	Failed           int `json:"failed" db:"failed"`
	SkippedDuplicate int `json:"skipped_duplicate" db:"skipped_duplicate"`
	SkippedNoPhone   int `json:"skipped_no_phone" db:"skipped_no_phone"`
	Simulated        int `json:"simulated" db:"simulated"`

	ErrorDetail string     `json:"error_detail,omitempty" db:"error_detail"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// IsTerminal returns true if the run is in a final state.
func (r *CampaignRun) IsTerminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// IsDryRun reports whether the run only simulates dispatch.
func (r *CampaignRun) IsDryRun() bool {
	return r.Trigger == TriggerDryRun
}

// LogOutcome enumerates the per-recipient result of one run item.
type LogOutcome string

const (
	OutcomeSent             LogOutcome = "sent"
	OutcomeFailed           LogOutcome = "failed"
	OutcomeSkippedDuplicate LogOutcome = "skipped_duplicate"
	OutcomeSkippedNoPhone   LogOutcome = "skipped_no_phone"
	OutcomeSimulated        LogOutcome = "simulated"
)

// RunLogEntry is one immutable line in a run's log, written as each
// candidate is resolved.
type RunLogEntry struct {
	ID          int64      `json:"id" db:"id"`
	RunID       string     `json:"run_id" db:"run_id"`
	Recipient   string     `json:"recipient" db:"recipient"` // document identifier
	Phone       string     `json:"phone,omitempty" db:"phone"`
	Channel     string     `json:"channel,omitempty" db:"channel"`
	Outcome     LogOutcome `json:"outcome" db:"outcome"`
	Detail      string     `json:"detail,omitempty" db:"detail"`
	Message     string     `json:"message,omitempty" db:"message"`
	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ScheduledRun is a one-off run registered for a future time. It fires once
// regardless of the kind's auto toggle, then is marked completed.
type ScheduledRun struct {
	ID            string       `json:"id" db:"id"`
	Kind          CampaignKind `json:"kind" db:"kind"`
	Scope         RenewalScope `json:"scope,omitempty" db:"scope"`
	PacingSeconds int          `json:"pacing_seconds" db:"pacing_seconds"`
	FireAt        time.Time    `json:"fire_at" db:"fire_at"`
	Completed     bool         `json:"completed" db:"completed"`
	RunID         *string      `json:"run_id,omitempty" db:"run_id"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}
