package selector

import (
	"context"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/dedupe"
)

// Candidate is one eligible recipient with its normalized phone attached.
type Candidate struct {
	Contact   domain.Contact `json:"contact"`
	Phone     string         `json:"phone"`
	Reference string         `json:"reference"`
}

// Skip is a considered-but-excluded contact with its reason.
type Skip struct {
	Contact domain.Contact    `json:"contact"`
	Outcome domain.LogOutcome `json:"outcome"`
	Detail  string            `json:"detail"`
}

// Result carries the ordered candidate list plus every classified skip.
// Contacts absent from the date filter never appear in either list.
type Result struct {
	Candidates []Candidate `json:"candidates"`
	Skips      []Skip      `json:"skips"`
	Reference  string      `json:"reference"`
}

// Service filters date-matched contacts down to sendable candidates.
type Service struct {
	source      ContactSource
	suppression SuppressionChecker
	ledger      DedupeChecker
}

// NewService wires the selector to its contact source and exclusion checks.
func NewService(source ContactSource, suppression SuppressionChecker, ledger DedupeChecker) *Service {
	return &Service{source: source, suppression: suppression, ledger: ledger}
}

// Select returns the eligible recipients for one run. asOf defaults to the
// caller's clock; passing another day simulates that day's selection.
func (s *Service) Select(ctx context.Context, kind domain.CampaignKind, scope domain.RenewalScope, asOf time.Time) (*Result, error) {
	contacts, err := s.fetch(ctx, kind, scope, asOf)
	if err != nil {
		return nil, &SelectionError{Kind: string(kind), Err: err}
	}

	reference := dedupe.ReferenceFor(kind, scope, asOf)
	res := &Result{Reference: reference}

	for _, c := range contacts {
		phone, ok := domain.NormalizePhone(c.Phone)
		if !ok {
			res.Skips = append(res.Skips, Skip{Contact: c, Outcome: domain.OutcomeSkippedNoPhone, Detail: "no usable phone number"})
			continue
		}

		suppressed, err := s.isSuppressed(ctx, phone, c.Email)
		if err != nil {
			return nil, &SelectionError{Kind: string(kind), Err: err}
		}
		if suppressed {
			res.Skips = append(res.Skips, Skip{Contact: c, Outcome: domain.OutcomeSkippedDuplicate, Detail: "address suppressed"})
			continue
		}

		marked, err := s.ledger.IsMarked(ctx, c.Document, kind, reference)
		if err != nil {
			return nil, &SelectionError{Kind: string(kind), Err: err}
		}
		if marked {
			res.Skips = append(res.Skips, Skip{Contact: c, Outcome: domain.OutcomeSkippedDuplicate, Detail: "already contacted"})
			continue
		}

		res.Candidates = append(res.Candidates, Candidate{Contact: c, Phone: phone, Reference: reference})
	}

	return res, nil
}

func (s *Service) fetch(ctx context.Context, kind domain.CampaignKind, scope domain.RenewalScope, asOf time.Time) ([]domain.Contact, error) {
	switch kind {
	case domain.KindRenewal:
		if scope == "" {
			scope = domain.ScopeCurrentYear
		}
		return s.source.ByRenewal(ctx, asOf, scope)
	default:
		return s.source.ByBirthday(ctx, asOf)
	}
}

// isSuppressed checks the phone first, then the email when present. Either
// being listed excludes the contact.
func (s *Service) isSuppressed(ctx context.Context, phone, email string) (bool, error) {
	if blocked, err := s.suppression.IsSuppressed(ctx, phone); err != nil || blocked {
		return blocked, err
	}
	if email == "" {
		return false, nil
	}
	blocked, err := s.suppression.IsSuppressed(ctx, email)
	if err != nil {
		// A malformed CRM email must not abort selection; the phone check
		// already passed.
		return false, nil
	}
	return blocked, nil
}
