package suppression

import (
	"context"
	"encoding/csv"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// Pagination bounds for search results.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service implements suppression business logic. It is safe for concurrent
// use; per-address serialization happens in the repository via row upserts.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Normalize canonicalizes an address: emails are lowercased and trimmed,
// phone-looking tokens are reduced to digits with the country prefix
// applied. Returns "" when the token is neither.
func Normalize(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return ""
	}
	if strings.Contains(address, "@") {
		if emailPattern.MatchString(address) {
			return address
		}
		return ""
	}
	phone, ok := domain.NormalizePhone(address)
	if !ok {
		return ""
	}
	return phone
}

// IsSuppressed checks whether an address is blocked from all sends.
func (s *Service) IsSuppressed(ctx context.Context, address string) (bool, error) {
	norm := Normalize(address)
	if norm == "" {
		return false, ErrInvalidAddress
	}
	return s.repo.IsSuppressed(ctx, norm)
}

// Suppress adds an address to the suppression list. Idempotent: an existing
// row is reactivated and its reason and updated_at refreshed.
func (s *Service) Suppress(ctx context.Context, address string, reason domain.SuppressionReason, detail string) error {
	norm := Normalize(address)
	if norm == "" {
		return ErrInvalidAddress
	}
	now := time.Now().UTC()
	return s.repo.Upsert(ctx, &domain.SuppressionEntry{
		Address:   norm,
		Reason:    reason,
		Detail:    detail,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Unsuppress reactivates a false positive by entry id — the operator undo
// path, and the only mutation besides creation.
func (s *Service) Unsuppress(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	return s.repo.Unsuppress(ctx, id)
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Invalid  []string `json:"invalid,omitempty"`
}

// Import ingests a delimited blob of addresses (newlines, commas and
// semicolons all act as separators). Re-importing a known address updates
// its row rather than duplicating it; malformed tokens are reported back,
// never silently dropped.
func (s *Service) Import(ctx context.Context, body string, reason domain.SuppressionReason) (*ImportResult, error) {
	if reason == "" {
		reason = domain.ReasonManualImport
	}
	res := &ImportResult{}
	seen := make(map[string]bool)
	for _, token := range splitAddresses(body) {
		norm := Normalize(token)
		if norm == "" {
			res.Invalid = append(res.Invalid, token)
			continue
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		if err := s.Suppress(ctx, norm, reason, "bulk import"); err != nil {
			return res, err
		}
		res.Imported++
	}
	return res, nil
}

func splitAddresses(body string) []string {
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	return fields
}

// Search returns entries matching the filter with the limit clamped to
// [1, MaxSearchLimit].
func (s *Service) Search(ctx context.Context, filter ListFilter) ([]domain.SuppressionEntry, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultSearchLimit
	}
	if filter.Limit > MaxSearchLimit {
		filter.Limit = MaxSearchLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// ExportCSV streams every entry as CSV: address, reason, active, updated_at.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"address", "reason", "active", "updated_at"}); err != nil {
		return err
	}
	for _, e := range entries {
		active := "false"
		if e.Active {
			active = "true"
		}
		if err := cw.Write([]string{e.Address, string(e.Reason), active, e.UpdatedAt.UTC().Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
