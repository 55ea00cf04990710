package sweep

import (
	"context"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Repository defines the data access contract for sweep state and history.
type Repository interface {
	// GetState returns the state row for a scope, nil when the scope has
	// never been swept.
	GetState(ctx context.Context, scope string) (*domain.SweepState, error)

	// SaveState upserts the single state row for the scope.
	SaveState(ctx context.Context, s *domain.SweepState) error

	// AppendSummary records one finished/stopped sweep in the history.
	AppendSummary(ctx context.Context, s *domain.SweepSummary) error

	// History returns the most recent summaries, newest first.
	History(ctx context.Context, limit int) ([]domain.SweepSummary, error)

	// RunningScopes lists scopes whose sweep is currently running, for
	// the external driver that issues process ticks.
	RunningScopes(ctx context.Context) ([]string, error)
}

// ContactPager enumerates the contact base for a scope in a stable order.
type ContactPager interface {
	CountByScope(ctx context.Context, scope string) (int, error)
	PageByScope(ctx context.Context, scope string, offset, limit int) ([]domain.Contact, error)
}

// Suppressor is the write half of the suppression store.
type Suppressor interface {
	Suppress(ctx context.Context, address string, reason domain.SuppressionReason, detail string) error
}
