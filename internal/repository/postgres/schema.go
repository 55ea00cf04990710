package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the engine's tables when they do not exist yet.
// crm_contacts is owned by the CRM; it is created here only so a fresh
// standalone deployment can boot and load fixtures.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS crm_contacts (
			document VARCHAR(32) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(32),
			email VARCHAR(255),
			birth_date DATE,
			renewal_at DATE,
			region VARCHAR(100),
			segment VARCHAR(100)
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_runs (
			id UUID PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			trigger_mode VARCHAR(20) NOT NULL,
			scope VARCHAR(20) DEFAULT '',
			pacing_seconds INT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			total_candidates INT DEFAULT 0,
			sent INT DEFAULT 0,
			failed INT DEFAULT 0,
			skipped_duplicate INT DEFAULT 0,
			skipped_no_phone INT DEFAULT 0,
			simulated INT DEFAULT 0,
			error_detail TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			started_at TIMESTAMP WITH TIME ZONE,
			completed_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_runs_kind_created
			ON campaign_runs (kind, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS campaign_run_log (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES campaign_runs(id),
			recipient VARCHAR(32) NOT NULL,
			phone VARCHAR(32) DEFAULT '',
			channel VARCHAR(50) DEFAULT '',
			outcome VARCHAR(30) NOT NULL,
			detail TEXT DEFAULT '',
			message TEXT DEFAULT '',
			scheduled_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_run_log_run
			ON campaign_run_log (run_id, id)`,
		`CREATE TABLE IF NOT EXISTS dedupe_marks (
			recipient VARCHAR(32) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			reference VARCHAR(10) NOT NULL,
			run_id UUID NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (recipient, kind, reference)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dedupe_marks_expires
			ON dedupe_marks (expires_at)`,
		`CREATE TABLE IF NOT EXISTS suppressions (
			id UUID PRIMARY KEY,
			address VARCHAR(255) NOT NULL UNIQUE,
			reason VARCHAR(30) NOT NULL,
			detail TEXT DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sweep_states (
			scope VARCHAR(100) PRIMARY KEY,
			status VARCHAR(20) NOT NULL DEFAULT 'stopped',
			cursor_pos INT NOT NULL DEFAULT 0,
			checked_count INT NOT NULL DEFAULT 0,
			total_count INT NOT NULL DEFAULT 0,
			bounce_count INT NOT NULL DEFAULT 0,
			external_mx BOOLEAN NOT NULL DEFAULT FALSE,
			batch_size INT NOT NULL DEFAULT 200,
			started_at TIMESTAMP WITH TIME ZONE,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sweep_summaries (
			id BIGSERIAL PRIMARY KEY,
			scope VARCHAR(100) NOT NULL,
			checked_count INT NOT NULL,
			total_count INT NOT NULL,
			bounce_count INT NOT NULL,
			completed BOOLEAN NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE,
			ended_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS automation_configs (
			kind VARCHAR(20) PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			start_time VARCHAR(5) NOT NULL,
			pacing_seconds INT NOT NULL,
			scope VARCHAR(20) DEFAULT '',
			last_auto_run_at TIMESTAMP WITH TIME ZONE,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_runs (
			id UUID PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			scope VARCHAR(20) DEFAULT '',
			pacing_seconds INT NOT NULL,
			fire_at TIMESTAMP WITH TIME ZONE NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			run_id UUID,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_runs_due
			ON scheduled_runs (fire_at) WHERE NOT completed`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
