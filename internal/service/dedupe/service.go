package dedupe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Service implements the dedupe ledger business logic. It is safe for
// concurrent use; per-key serialization is the repository's job (row-level
// upserts), not a service-wide lock.
type Service struct {
	repo Repository
	ttl  time.Duration
}

// NewService creates a dedupe service backed by the given repository.
// ttl is how long a mark blocks re-contact (annual campaigns use ~330 days).
func NewService(repo Repository, ttl time.Duration) *Service {
	return &Service{repo: repo, ttl: ttl}
}

// ReferenceFor derives the ledger reference period for a run: the scope
// year for renewals ("all" when every year is in scope), the calendar year
// for birthdays.
func ReferenceFor(kind domain.CampaignKind, scope domain.RenewalScope, asOf time.Time) string {
	if kind == domain.KindRenewal && scope == domain.ScopeAllYears {
		return "all"
	}
	return strconv.Itoa(asOf.Year())
}

// IsMarked reports whether an unexpired mark blocks the recipient for the
// given kind and reference period.
func (s *Service) IsMarked(ctx context.Context, recipient string, kind domain.CampaignKind, reference string) (bool, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return false, ErrEmptyRecipient
	}
	return s.repo.Exists(ctx, recipient, kind, reference, time.Now().UTC())
}

// Mark records that the recipient was contacted for the kind/reference by
// the given run. Overwrites any existing mark for the same key, extending
// its expiry.
func (s *Service) Mark(ctx context.Context, recipient string, kind domain.CampaignKind, reference, runID string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return ErrEmptyRecipient
	}
	now := time.Now().UTC()
	return s.repo.Upsert(ctx, &domain.DedupeMark{
		Recipient: recipient,
		Kind:      kind,
		Reference: reference,
		RunID:     runID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
}

// PruneExpired removes marks past their expiry. Expired marks stop
// blocking sends the moment they expire; pruning is housekeeping only.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now().UTC())
}
