package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// DedupeRepo implements dedupe.Repository against PostgreSQL.
type DedupeRepo struct{ db *sql.DB }

// NewDedupeRepo creates a Postgres-backed dedupe ledger.
func NewDedupeRepo(db *sql.DB) *DedupeRepo { return &DedupeRepo{db: db} }

func (r *DedupeRepo) Upsert(ctx context.Context, m *domain.DedupeMark) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dedupe_marks (recipient, kind, reference, run_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (recipient, kind, reference) DO UPDATE
			SET run_id = EXCLUDED.run_id,
			    created_at = EXCLUDED.created_at,
			    expires_at = EXCLUDED.expires_at
	`, m.Recipient, m.Kind, m.Reference, m.RunID, m.CreatedAt, m.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert dedupe mark: %w", err)
	}
	return nil
}

func (r *DedupeRepo) Exists(ctx context.Context, recipient string, kind domain.CampaignKind, reference string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM dedupe_marks
			WHERE recipient = $1 AND kind = $2 AND reference = $3 AND expires_at > $4
		)
	`, recipient, kind, reference, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedupe exists: %w", err)
	}
	return exists, nil
}

func (r *DedupeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM dedupe_marks WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired marks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
