package selector

import (
	"context"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// ContactSource is the read contract against the CRM contact base. The
// source applies the date filter and returns contacts in a stable order
// (by document identifier).
type ContactSource interface {
	// ByBirthday returns contacts whose birth month/day match the as-of date.
	ByBirthday(ctx context.Context, asOf time.Time) ([]domain.Contact, error)

	// ByRenewal returns contacts whose renewal date falls on the as-of
	// month/day, limited to the as-of year unless scope is "all".
	ByRenewal(ctx context.Context, asOf time.Time, scope domain.RenewalScope) ([]domain.Contact, error)
}

// SuppressionChecker answers whether an address is on the exclusion list.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, address string) (bool, error)
}

// DedupeChecker answers whether a recipient already holds an unexpired mark.
type DedupeChecker interface {
	IsMarked(ctx context.Context, recipient string, kind domain.CampaignKind, reference string) (bool, error)
}
