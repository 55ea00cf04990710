package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/automation"
)

// AutomationRepo implements automation.Repository against PostgreSQL.
type AutomationRepo struct{ db *sql.DB }

// NewAutomationRepo creates a Postgres-backed automation store.
func NewAutomationRepo(db *sql.DB) *AutomationRepo { return &AutomationRepo{db: db} }

func (r *AutomationRepo) GetConfig(ctx context.Context, kind domain.CampaignKind) (*domain.AutomationConfig, error) {
	cfg := &domain.AutomationConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT kind, enabled, start_time, pacing_seconds, COALESCE(scope,''), last_auto_run_at, updated_at
		FROM automation_configs
		WHERE kind = $1
	`, kind).Scan(&cfg.Kind, &cfg.Enabled, &cfg.StartTime, &cfg.PacingSeconds,
		&cfg.Scope, &cfg.LastAutoRunAt, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get automation config: %w", err)
	}
	return cfg, nil
}

func (r *AutomationRepo) SaveConfig(ctx context.Context, cfg *domain.AutomationConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_configs
			(kind, enabled, start_time, pacing_seconds, scope, last_auto_run_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			start_time = EXCLUDED.start_time,
			pacing_seconds = EXCLUDED.pacing_seconds,
			scope = EXCLUDED.scope,
			last_auto_run_at = EXCLUDED.last_auto_run_at,
			updated_at = EXCLUDED.updated_at
	`, cfg.Kind, cfg.Enabled, cfg.StartTime, cfg.PacingSeconds, cfg.Scope,
		cfg.LastAutoRunAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save automation config: %w", err)
	}
	return nil
}

func (r *AutomationRepo) ListConfigs(ctx context.Context) ([]domain.AutomationConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, enabled, start_time, pacing_seconds, COALESCE(scope,''), last_auto_run_at, updated_at
		FROM automation_configs
		ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("list automation configs: %w", err)
	}
	defer rows.Close()

	var out []domain.AutomationConfig
	for rows.Next() {
		var cfg domain.AutomationConfig
		if err := rows.Scan(&cfg.Kind, &cfg.Enabled, &cfg.StartTime, &cfg.PacingSeconds,
			&cfg.Scope, &cfg.LastAutoRunAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan automation config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (r *AutomationRepo) CreateScheduledRun(ctx context.Context, s *domain.ScheduledRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_runs (id, kind, scope, pacing_seconds, fire_at, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`, s.ID, s.Kind, s.Scope, s.PacingSeconds, s.FireAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create scheduled run: %w", err)
	}
	return nil
}

func (r *AutomationRepo) DueScheduledRuns(ctx context.Context, now time.Time) ([]domain.ScheduledRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, COALESCE(scope,''), pacing_seconds, fire_at, completed, run_id, created_at
		FROM scheduled_runs
		WHERE NOT completed AND fire_at <= $1
		ORDER BY fire_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("due scheduled runs: %w", err)
	}
	return collectScheduledRuns(rows)
}

// CompleteScheduledRun marks the registration fired. The completed guard
// in the WHERE clause is what keeps two workers from firing it twice.
func (r *AutomationRepo) CompleteScheduledRun(ctx context.Context, id, runID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_runs SET completed = true, run_id = NULLIF($2, '')::uuid
		WHERE id = $1 AND NOT completed
	`, id, runID)
	if err != nil {
		return fmt.Errorf("complete scheduled run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return automation.ErrScheduleNotFound
	}
	return nil
}

func (r *AutomationRepo) PendingScheduledRuns(ctx context.Context, kind domain.CampaignKind) ([]domain.ScheduledRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, COALESCE(scope,''), pacing_seconds, fire_at, completed, run_id, created_at
		FROM scheduled_runs
		WHERE kind = $1 AND NOT completed
		ORDER BY fire_at
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("pending scheduled runs: %w", err)
	}
	return collectScheduledRuns(rows)
}

func collectScheduledRuns(rows *sql.Rows) ([]domain.ScheduledRun, error) {
	defer rows.Close()

	var out []domain.ScheduledRun
	for rows.Next() {
		var s domain.ScheduledRun
		if err := rows.Scan(&s.ID, &s.Kind, &s.Scope, &s.PacingSeconds,
			&s.FireAt, &s.Completed, &s.RunID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
