package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

const contactColumns = `document, name, COALESCE(phone,''), COALESCE(email,''),
	birth_date, renewal_at, COALESCE(region,''), COALESCE(segment,'')`

// ContactRepo reads the CRM contact base. The engine never writes to it.
// It serves both candidate selection (date filters) and the sweep's
// stable pagination.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact reader.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// ByBirthday returns contacts whose birth month/day match the as-of date,
// ordered by document so repeated selections are deterministic.
func (r *ContactRepo) ByBirthday(ctx context.Context, asOf time.Time) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM crm_contacts
		WHERE birth_date IS NOT NULL
		  AND EXTRACT(MONTH FROM birth_date) = $1
		  AND EXTRACT(DAY FROM birth_date) = $2
		ORDER BY document
	`, int(asOf.Month()), asOf.Day())
	if err != nil {
		return nil, fmt.Errorf("contacts by birthday: %w", err)
	}
	return collectContacts(rows)
}

// ByRenewal returns contacts whose renewal falls on the as-of month/day.
// Scope "all" spans every year; otherwise only the as-of year matches.
func (r *ContactRepo) ByRenewal(ctx context.Context, asOf time.Time, scope domain.RenewalScope) ([]domain.Contact, error) {
	q := `
		SELECT ` + contactColumns + `
		FROM crm_contacts
		WHERE renewal_at IS NOT NULL
		  AND EXTRACT(MONTH FROM renewal_at) = $1
		  AND EXTRACT(DAY FROM renewal_at) = $2`
	args := []interface{}{int(asOf.Month()), asOf.Day()}

	if scope != domain.ScopeAllYears {
		q += ` AND EXTRACT(YEAR FROM renewal_at) = $3`
		args = append(args, asOf.Year())
	}
	q += ` ORDER BY document`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("contacts by renewal: %w", err)
	}
	return collectContacts(rows)
}

// CountByScope returns the contact count for a sweep scope ("all" or a
// segment name).
func (r *ContactRepo) CountByScope(ctx context.Context, scope string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM crm_contacts
		WHERE $1 = 'all' OR segment = $1
	`, scope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

// PageByScope returns one stable page of the scope, ordered by document.
func (r *ContactRepo) PageByScope(ctx context.Context, scope string, offset, limit int) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM crm_contacts
		WHERE $1 = 'all' OR segment = $1
		ORDER BY document
		LIMIT $2 OFFSET $3
	`, scope, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page contacts: %w", err)
	}
	return collectContacts(rows)
}

func collectContacts(rows *sql.Rows) ([]domain.Contact, error) {
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(
			&c.Document, &c.Name, &c.Phone, &c.Email,
			&c.BirthDate, &c.RenewalAt, &c.Region, &c.Segment,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
