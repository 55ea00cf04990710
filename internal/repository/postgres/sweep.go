package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safegreen/outreach-engine/internal/domain"
)

// SweepRepo implements sweep.Repository against PostgreSQL.
type SweepRepo struct{ db *sql.DB }

// NewSweepRepo creates a Postgres-backed sweep state store.
func NewSweepRepo(db *sql.DB) *SweepRepo { return &SweepRepo{db: db} }

func (r *SweepRepo) GetState(ctx context.Context, scope string) (*domain.SweepState, error) {
	s := &domain.SweepState{}
	err := r.db.QueryRowContext(ctx, `
		SELECT scope, status, cursor_pos, checked_count, total_count, bounce_count,
		       external_mx, batch_size, started_at, updated_at
		FROM sweep_states
		WHERE scope = $1
	`, scope).Scan(
		&s.Scope, &s.Status, &s.Cursor, &s.CheckedCount, &s.TotalCount, &s.BounceCount,
		&s.ExternalMX, &s.BatchSize, &s.StartedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sweep state: %w", err)
	}
	return s, nil
}

func (r *SweepRepo) SaveState(ctx context.Context, s *domain.SweepState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sweep_states
			(scope, status, cursor_pos, checked_count, total_count, bounce_count,
			 external_mx, batch_size, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (scope) DO UPDATE SET
			status = EXCLUDED.status,
			cursor_pos = EXCLUDED.cursor_pos,
			checked_count = EXCLUDED.checked_count,
			total_count = EXCLUDED.total_count,
			bounce_count = EXCLUDED.bounce_count,
			external_mx = EXCLUDED.external_mx,
			batch_size = EXCLUDED.batch_size,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at
	`, s.Scope, s.Status, s.Cursor, s.CheckedCount, s.TotalCount, s.BounceCount,
		s.ExternalMX, s.BatchSize, s.StartedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save sweep state: %w", err)
	}
	return nil
}

func (r *SweepRepo) AppendSummary(ctx context.Context, s *domain.SweepSummary) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sweep_summaries
			(scope, checked_count, total_count, bounce_count, completed, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, s.Scope, s.CheckedCount, s.TotalCount, s.BounceCount, s.Completed,
		s.StartedAt, s.EndedAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("append sweep summary: %w", err)
	}
	return nil
}

func (r *SweepRepo) History(ctx context.Context, limit int) ([]domain.SweepSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope, checked_count, total_count, bounce_count, completed, started_at, ended_at
		FROM sweep_summaries
		ORDER BY ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sweep history: %w", err)
	}
	defer rows.Close()

	var out []domain.SweepSummary
	for rows.Next() {
		var s domain.SweepSummary
		if err := rows.Scan(&s.ID, &s.Scope, &s.CheckedCount, &s.TotalCount,
			&s.BounceCount, &s.Completed, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("scan sweep summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SweepRepo) RunningScopes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT scope FROM sweep_states WHERE status = 'running' ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("running sweep scopes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		out = append(out, scope)
	}
	return out, rows.Err()
}
