package runner

import (
	"context"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Repository defines the data access contract for runs and their logs.
type Repository interface {
	// CreateRun persists a new run in pending state.
	CreateRun(ctx context.Context, run *domain.CampaignRun) error

	// MarkRunning transitions pending → running. Returns false when the
	// run was already claimed (status no longer pending).
	MarkRunning(ctx context.Context, id string, at time.Time) (bool, error)

	// FinishRun writes the terminal status, counters and completion time.
	FinishRun(ctx context.Context, run *domain.CampaignRun) error

	// GetRun returns one run. ErrRunNotFound when absent.
	GetRun(ctx context.Context, id string) (*domain.CampaignRun, error)

	// AppendLog writes one immutable log entry.
	AppendLog(ctx context.Context, e *domain.RunLogEntry) error

	// LogForRun returns a run's entries in write order.
	LogForRun(ctx context.Context, runID string) ([]domain.RunLogEntry, error)

	// LastRun returns the most recently created run of a kind, nil when
	// the kind never ran.
	LastRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error)

	// RunningRun returns the in-progress run of a kind, nil when idle.
	RunningRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error)
}
