package suppression

import (
	"context"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// IsSuppressed returns true if the address has an active entry.
	IsSuppressed(ctx context.Context, address string) (bool, error)

	// Upsert writes an entry. If the address already exists the row is
	// reactivated and its reason/updated_at refreshed (idempotent import).
	Upsert(ctx context.Context, e *domain.SuppressionEntry) error

	// Unsuppress deactivates an entry by id. Returns ErrNotFound if no
	// active entry has that id.
	Unsuppress(ctx context.Context, id string) error

	// List returns entries matching the filter plus the unpaged total.
	List(ctx context.Context, filter ListFilter) ([]domain.SuppressionEntry, int, error)

	// All returns every entry, active and inactive, for export.
	All(ctx context.Context) ([]domain.SuppressionEntry, error)
}

// ListFilter controls pagination and filtering for suppression searches.
type ListFilter struct {
	Search     string
	Reason     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
