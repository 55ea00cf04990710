package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/runner"
)

// CampaignRunRepo implements runner.Repository against PostgreSQL.
type CampaignRunRepo struct{ db *sql.DB }

// NewCampaignRunRepo creates a Postgres-backed run repository.
func NewCampaignRunRepo(db *sql.DB) *CampaignRunRepo { return &CampaignRunRepo{db: db} }

func (r *CampaignRunRepo) CreateRun(ctx context.Context, run *domain.CampaignRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_runs
			(id, kind, trigger_mode, scope, pacing_seconds, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, run.Kind, run.Trigger, run.Scope, run.PacingSeconds, run.Status, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// MarkRunning claims the pending row. The status guard in the WHERE clause
// is what makes the claim exclusive across processes.
func (r *CampaignRunRepo) MarkRunning(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_runs SET status = 'running', started_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark running: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CampaignRunRepo) FinishRun(ctx context.Context, run *domain.CampaignRun) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_runs
		SET status = $2, total_candidates = $3, sent = $4, failed = $5,
		    skipped_duplicate = $6, skipped_no_phone = $7, simulated = $8,
		    error_detail = $9, completed_at = $10
		WHERE id = $1
	`, run.ID, run.Status, run.TotalCandidates, run.Sent, run.Failed,
		run.SkippedDuplicate, run.SkippedNoPhone, run.Simulated,
		run.ErrorDetail, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return runner.ErrRunNotFound
	}
	return nil
}

const runColumns = `id, kind, trigger_mode, COALESCE(scope,''), pacing_seconds, status,
	total_candidates, sent, failed, skipped_duplicate, skipped_no_phone, simulated,
	COALESCE(error_detail,''), created_at, started_at, completed_at`

func scanRun(row interface{ Scan(...interface{}) error }) (*domain.CampaignRun, error) {
	run := &domain.CampaignRun{}
	err := row.Scan(
		&run.ID, &run.Kind, &run.Trigger, &run.Scope, &run.PacingSeconds, &run.Status,
		&run.TotalCandidates, &run.Sent, &run.Failed, &run.SkippedDuplicate,
		&run.SkippedNoPhone, &run.Simulated,
		&run.ErrorDetail, &run.CreatedAt, &run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *CampaignRunRepo) GetRun(ctx context.Context, id string) (*domain.CampaignRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM campaign_runs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, runner.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (r *CampaignRunRepo) AppendLog(ctx context.Context, e *domain.RunLogEntry) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaign_run_log
			(run_id, recipient, phone, channel, outcome, detail, message, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, e.RunID, e.Recipient, e.Phone, e.Channel, e.Outcome, e.Detail, e.Message,
		e.ScheduledAt, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

func (r *CampaignRunRepo) LogForRun(ctx context.Context, runID string) ([]domain.RunLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, recipient, COALESCE(phone,''), COALESCE(channel,''),
		       outcome, COALESCE(detail,''), COALESCE(message,''), scheduled_at, created_at
		FROM campaign_run_log
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	defer rows.Close()

	var out []domain.RunLogEntry
	for rows.Next() {
		var e domain.RunLogEntry
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.Recipient, &e.Phone, &e.Channel,
			&e.Outcome, &e.Detail, &e.Message, &e.ScheduledAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CampaignRunRepo) LastRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM campaign_runs WHERE kind = $1 ORDER BY created_at DESC LIMIT 1`, kind))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return run, nil
}

func (r *CampaignRunRepo) RunningRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM campaign_runs WHERE kind = $1 AND status = 'running' ORDER BY created_at DESC LIMIT 1`, kind))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("running run: %w", err)
	}
	return run, nil
}
