package automation

import (
	"context"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Repository defines the data access contract for automation state.
type Repository interface {
	// GetConfig returns the config row for a kind, nil when never set.
	GetConfig(ctx context.Context, kind domain.CampaignKind) (*domain.AutomationConfig, error)

	// SaveConfig upserts the single config row for a kind.
	SaveConfig(ctx context.Context, cfg *domain.AutomationConfig) error

	// ListConfigs returns every config row.
	ListConfigs(ctx context.Context) ([]domain.AutomationConfig, error)

	// CreateScheduledRun persists a one-off run registration.
	CreateScheduledRun(ctx context.Context, r *domain.ScheduledRun) error

	// DueScheduledRuns returns uncompleted registrations with fire_at <= now.
	DueScheduledRuns(ctx context.Context, now time.Time) ([]domain.ScheduledRun, error)

	// CompleteScheduledRun marks a registration fired, recording the run
	// it produced. Returns ErrScheduleNotFound when already completed —
	// the guard against two workers firing the same registration.
	CompleteScheduledRun(ctx context.Context, id, runID string) error

	// PendingScheduledRuns returns future registrations for a kind.
	PendingScheduledRuns(ctx context.Context, kind domain.CampaignKind) ([]domain.ScheduledRun, error)
}
