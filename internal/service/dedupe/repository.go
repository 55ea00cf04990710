package dedupe

import (
	"context"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Repository defines the data access contract for dedupe marks.
type Repository interface {
	// Upsert writes a mark, replacing any existing mark for the same
	// (recipient, kind, reference) key.
	Upsert(ctx context.Context, m *domain.DedupeMark) error

	// Exists returns true if an unexpired mark exists for the key at now.
	Exists(ctx context.Context, recipient string, kind domain.CampaignKind, reference string, now time.Time) (bool, error)

	// DeleteExpired prunes marks that expired before now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
