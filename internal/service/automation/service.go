package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/pacing"
)

// Service manages automation configs and one-off scheduled runs.
type Service struct {
	repo             Repository
	defaultStartTime string
	defaultPacing    time.Duration
	now              func() time.Time
}

// NewService wires the automation service. Defaults seed the config row
// the first time a kind is read.
func NewService(repo Repository, defaultStartTime string, defaultPacing time.Duration) *Service {
	return &Service{
		repo:             repo,
		defaultStartTime: defaultStartTime,
		defaultPacing:    defaultPacing,
		now:              time.Now,
	}
}

// GetConfig returns the stored config for a kind, seeding defaults
// (disabled) when the kind was never configured.
func (s *Service) GetConfig(ctx context.Context, kind domain.CampaignKind) (*domain.AutomationConfig, error) {
	if !domain.ValidKind(kind) {
		return nil, ErrUnknownKind
	}
	cfg, err := s.repo.GetConfig(ctx, kind)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &domain.AutomationConfig{
			Kind:          kind,
			Enabled:       false,
			StartTime:     s.defaultStartTime,
			PacingSeconds: int(s.defaultPacing / time.Second),
			UpdatedAt:     s.now().UTC(),
		}
	}
	return cfg, nil
}

// UpdateInput carries a config mutation.
type UpdateInput struct {
	Enabled   bool
	StartTime string
	Pacing    time.Duration
	Scope     domain.RenewalScope
}

// UpdateConfig validates and persists a config mutation. The pacing is
// clamped into config bounds; a malformed start time is rejected.
func (s *Service) UpdateConfig(ctx context.Context, kind domain.CampaignKind, in UpdateInput) (*domain.AutomationConfig, error) {
	cfg, err := s.GetConfig(ctx, kind)
	if err != nil {
		return nil, err
	}
	if in.StartTime != "" {
		if _, err := time.Parse("15:04", in.StartTime); err != nil {
			return nil, ErrBadStartTime
		}
		cfg.StartTime = in.StartTime
	}
	if in.Pacing > 0 {
		cfg.PacingSeconds = int(pacing.ClampConfigPacing(in.Pacing) / time.Second)
	}
	if kind == domain.KindRenewal && in.Scope != "" {
		cfg.Scope = in.Scope
	}
	cfg.Enabled = in.Enabled
	cfg.UpdatedAt = s.now().UTC()

	if err := s.repo.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Schedule registers a one-off run. It fires once at fireAt regardless of
// the kind's enabled toggle.
func (s *Service) Schedule(ctx context.Context, kind domain.CampaignKind, fireAt time.Time, p time.Duration, scope domain.RenewalScope) (*domain.ScheduledRun, error) {
	if !domain.ValidKind(kind) {
		return nil, ErrUnknownKind
	}
	if !fireAt.After(s.now()) {
		return nil, ErrScheduleInPast
	}
	if p <= 0 {
		p = s.defaultPacing
	}
	p, err := pacing.ValidateRunPacing(p)
	if err != nil {
		return nil, err
	}

	r := &domain.ScheduledRun{
		ID:            uuid.NewString(),
		Kind:          kind,
		Scope:         scope,
		PacingSeconds: int(p / time.Second),
		FireAt:        fireAt.UTC(),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateScheduledRun(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DueAuto returns configs whose daily trigger is due at now.
func (s *Service) DueAuto(ctx context.Context, now time.Time) ([]domain.AutomationConfig, error) {
	configs, err := s.repo.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}
	var due []domain.AutomationConfig
	for _, cfg := range configs {
		if cfg.DueAt(now) {
			due = append(due, cfg)
		}
	}
	return due, nil
}

// MarkAutoRan stamps the kind's last auto run, suppressing further auto
// triggers until the next day. Stamped when the trigger fires, not when
// the run completes, so a slow run cannot double-trigger.
func (s *Service) MarkAutoRan(ctx context.Context, kind domain.CampaignKind, at time.Time) error {
	cfg, err := s.GetConfig(ctx, kind)
	if err != nil {
		return err
	}
	at = at.UTC()
	cfg.LastAutoRunAt = &at
	cfg.UpdatedAt = s.now().UTC()
	return s.repo.SaveConfig(ctx, cfg)
}

// DueScheduled returns one-off registrations ready to fire.
func (s *Service) DueScheduled(ctx context.Context, now time.Time) ([]domain.ScheduledRun, error) {
	return s.repo.DueScheduledRuns(ctx, now)
}

// CompleteScheduled marks a one-off registration as fired.
func (s *Service) CompleteScheduled(ctx context.Context, id, runID string) error {
	return s.repo.CompleteScheduledRun(ctx, id, runID)
}

// PendingScheduled returns future one-off registrations for a kind.
func (s *Service) PendingScheduled(ctx context.Context, kind domain.CampaignKind) ([]domain.ScheduledRun, error) {
	return s.repo.PendingScheduledRuns(ctx, kind)
}

// NextDue computes when the next auto trigger for cfg would fire, the
// zero time when the toggle is off or the start time malformed.
func NextDue(cfg domain.AutomationConfig, now time.Time) time.Time {
	if !cfg.Enabled {
		return time.Time{}
	}
	start, err := time.ParseInLocation("15:04", cfg.StartTime, now.Location())
	if err != nil {
		return time.Time{}
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	ranToday := cfg.LastAutoRunAt != nil && !cfg.LastAutoRunAt.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()))
	if ranToday {
		return due.AddDate(0, 0, 1)
	}
	// Past today's start and not yet run means due immediately.
	return due
}
