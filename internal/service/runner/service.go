package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/gateway"
	"github.com/safegreen/outreach-engine/internal/pkg/distlock"
	"github.com/safegreen/outreach-engine/internal/pkg/logger"
	"github.com/safegreen/outreach-engine/internal/service/pacing"
	"github.com/safegreen/outreach-engine/internal/service/selector"
)

// Run lock TTL; extended on every dispatch iteration so long-paced runs
// keep ownership.
const runLockTTL = 10 * time.Minute

// Selector narrows the selector service to what the runner needs.
type Selector interface {
	Select(ctx context.Context, kind domain.CampaignKind, scope domain.RenewalScope, asOf time.Time) (*selector.Result, error)
}

// Dispatcher narrows the gateway sender.
type Dispatcher interface {
	Send(ctx context.Context, phone, message string) (*gateway.Outcome, error)
}

// Ledger narrows the dedupe service to the write path.
type Ledger interface {
	Mark(ctx context.Context, recipient string, kind domain.CampaignKind, reference, runID string) error
}

// SuppressionChecker re-checks an address immediately before dispatch.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, address string) (bool, error)
}

// Renderer produces the personalized message text.
type Renderer interface {
	Render(kind domain.CampaignKind, c domain.Contact) (string, error)
}

// LockFactory builds a named distributed lock. Wired to distlock.NewLock
// in production; tests substitute a local fake.
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// Request describes one run trigger.
type Request struct {
	Kind    domain.CampaignKind
	Trigger domain.TriggerMode
	Scope   domain.RenewalScope
	Pacing  time.Duration // 0 → default pacing
	StartAt time.Time     // zero → now
	AsOf    time.Time     // zero → StartAt; override to simulate another day
}

// Result is a finished (or failed) run with its full log.
type Result struct {
	Run *domain.CampaignRun  `json:"run"`
	Log []domain.RunLogEntry `json:"log"`
}

// Service orchestrates campaign runs. Runs of different kinds proceed
// concurrently; a per-kind lock serializes runs of the same kind.
type Service struct {
	repo          Repository
	selector      Selector
	dispatcher    Dispatcher
	ledger        Ledger
	suppression   SuppressionChecker
	renderer      Renderer
	locks         LockFactory
	defaultPacing time.Duration

	now       func() time.Time
	waitUntil func(ctx context.Context, t time.Time) error
}

// NewService wires a runner.
func NewService(repo Repository, sel Selector, disp Dispatcher, ledger Ledger, sup SuppressionChecker, rend Renderer, locks LockFactory, defaultPacing time.Duration) *Service {
	if defaultPacing <= 0 {
		defaultPacing = pacing.DefaultPacing
	}
	return &Service{
		repo:          repo,
		selector:      sel,
		dispatcher:    disp,
		ledger:        ledger,
		suppression:   sup,
		renderer:      rend,
		locks:         locks,
		defaultPacing: defaultPacing,
		now:           time.Now,
		waitUntil:     sleepUntil,
	}
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute runs one campaign synchronously and returns the run with its
// log. The error return is reserved for rejections (validation, duplicate
// trigger) and persistence failures — a run that completes with item
// failures is not an error.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	if !domain.ValidKind(req.Kind) {
		return nil, ErrUnknownKind
	}
	p := req.Pacing
	if p == 0 {
		p = s.defaultPacing
	}
	p, err := pacing.ValidateRunPacing(p)
	if err != nil {
		return nil, err
	}

	startAt := req.StartAt
	if startAt.IsZero() {
		startAt = s.now()
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = startAt
	}

	dryRun := req.Trigger == domain.TriggerDryRun
	if !dryRun {
		lock := s.locks("run:"+string(req.Kind), runLockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrAlreadyRunning
		}
		defer lock.Release(context.WithoutCancel(ctx))
		return s.execute(ctx, req, p, startAt, asOf, lock)
	}
	return s.execute(ctx, req, p, startAt, asOf, nil)
}

func (s *Service) execute(ctx context.Context, req Request, p time.Duration, startAt, asOf time.Time, lock distlock.DistLock) (*Result, error) {
	run := &domain.CampaignRun{
		ID:            uuid.NewString(),
		Kind:          req.Kind,
		Trigger:       req.Trigger,
		Scope:         req.Scope,
		PacingSeconds: int(p / time.Second),
		Status:        domain.RunPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	startedAt := s.now().UTC()
	claimed, err := s.repo.MarkRunning(ctx, run.ID, startedAt)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyRunning
	}
	run.Status = domain.RunRunning
	run.StartedAt = &startedAt

	logger.Info("campaign run started",
		"run_id", run.ID, "kind", string(run.Kind), "trigger", string(run.Trigger), "pacing", p.String())

	sel, err := s.selector.Select(ctx, req.Kind, req.Scope, asOf)
	if err != nil {
		// Selection failure is fatal: the run fails with whatever log
		// exists (none yet) preserved.
		run.Status = domain.RunFailed
		run.ErrorDetail = err.Error()
		completed := s.now().UTC()
		run.CompletedAt = &completed
		if ferr := s.repo.FinishRun(ctx, run); ferr != nil {
			return nil, ferr
		}
		return &Result{Run: run}, nil
	}

	run.TotalCandidates = len(sel.Candidates) + len(sel.Skips)

	var entries []domain.RunLogEntry

	// Skips are resolved before any dispatch and carry no schedule slot.
	for _, sk := range sel.Skips {
		e := domain.RunLogEntry{
			RunID:     run.ID,
			Recipient: sk.Contact.Document,
			Outcome:   sk.Outcome,
			Detail:    sk.Detail,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.AppendLog(ctx, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
		s.tally(run, sk.Outcome)
	}

	slots, err := pacing.Schedule(len(sel.Candidates), p, startAt)
	if err != nil {
		return nil, err
	}

	stopped := false
	for i, cand := range sel.Candidates {
		scheduledAt := slots[i].ScheduledAt

		if !run.IsDryRun() {
			if lock != nil {
				_ = lock.Extend(ctx, runLockTTL)
			}
			if err := s.waitUntil(ctx, scheduledAt); err != nil {
				stopped = true
				break
			}
		}

		e := s.dispatchOne(ctx, run, cand, scheduledAt)
		if err := s.repo.AppendLog(ctx, e); err != nil {
			return nil, err
		}
		entries = append(entries, *e)
		s.tally(run, e.Outcome)

		if ctx.Err() != nil && i < len(sel.Candidates)-1 {
			stopped = true
			break
		}
	}

	run.Status = domain.RunCompleted
	if stopped {
		// The undispatched remainder produced no log entries, so a
		// completed status would leave the counters short of the
		// candidate total. Fail the run with the partial log preserved,
		// like the selection-failure path.
		run.Status = domain.RunFailed
		run.ErrorDetail = "run stopped before all items were dispatched"
	}
	completed := s.now().UTC()
	run.CompletedAt = &completed
	if err := s.repo.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return nil, err
	}

	logger.Info("campaign run finished",
		"run_id", run.ID, "status", string(run.Status),
		"total", run.TotalCandidates, "sent", run.Sent, "failed", run.Failed,
		"skipped_duplicate", run.SkippedDuplicate, "skipped_no_phone", run.SkippedNoPhone,
		"simulated", run.Simulated)

	return &Result{Run: run, Log: entries}, nil
}

// dispatchOne resolves a single candidate into a log entry. Dry runs
// record the schedule and rendered message with no I/O at all.
func (s *Service) dispatchOne(ctx context.Context, run *domain.CampaignRun, cand selector.Candidate, scheduledAt time.Time) *domain.RunLogEntry {
	e := &domain.RunLogEntry{
		RunID:       run.ID,
		Recipient:   cand.Contact.Document,
		Phone:       cand.Phone,
		ScheduledAt: &scheduledAt,
		CreatedAt:   s.now().UTC(),
	}

	msg, err := s.renderer.Render(run.Kind, cand.Contact)
	if err != nil {
		e.Outcome = domain.OutcomeFailed
		e.Detail = "message render failed: " + err.Error()
		return e
	}
	e.Message = msg

	if run.IsDryRun() {
		e.Outcome = domain.OutcomeSimulated
		return e
	}

	// Defensive re-check: the sweep may have suppressed this address
	// between selection and its pacing slot.
	suppressed, err := s.suppression.IsSuppressed(ctx, cand.Phone)
	if err == nil && suppressed {
		e.Outcome = domain.OutcomeSkippedDuplicate
		e.Detail = "suppressed after selection"
		return e
	}

	out, err := s.dispatcher.Send(ctx, cand.Phone, msg)
	if err != nil {
		e.Outcome = domain.OutcomeFailed
		if errors.Is(err, gateway.ErrCooldownActive) {
			e.Detail = "cooldown: " + err.Error()
		} else {
			e.Detail = err.Error()
		}
		return e
	}

	e.Channel = out.Channel
	if out.Status == gateway.StatusSent {
		e.Outcome = domain.OutcomeSent
		// Mark only on confirmed sends so a failed item can be retried
		// by a later run without the ledger blocking it.
		if err := s.ledger.Mark(ctx, cand.Contact.Document, run.Kind, cand.Reference, run.ID); err != nil {
			logger.Error("dedupe mark failed", "run_id", run.ID, "recipient", cand.Contact.Document, "error", err.Error())
		}
	} else {
		e.Outcome = domain.OutcomeFailed
		e.Detail = out.Detail
		if out.AssistLink != "" {
			e.Detail += " | assist: " + out.AssistLink
		}
	}
	return e
}

func (s *Service) tally(run *domain.CampaignRun, outcome domain.LogOutcome) {
	switch outcome {
	case domain.OutcomeSent:
		run.Sent++
	case domain.OutcomeFailed:
		run.Failed++
	case domain.OutcomeSkippedDuplicate:
		run.SkippedDuplicate++
	case domain.OutcomeSkippedNoPhone:
		run.SkippedNoPhone++
	case domain.OutcomeSimulated:
		run.Simulated++
	}
}

// GetRun returns one run and its log.
func (s *Service) GetRun(ctx context.Context, id string) (*Result, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.LogForRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Run: run, Log: entries}, nil
}

// LastRun returns the most recent run of a kind, nil when none exists.
func (s *Service) LastRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error) {
	return s.repo.LastRun(ctx, kind)
}

// RunningRun returns the in-progress run of a kind, nil when idle.
func (s *Service) RunningRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error) {
	return s.repo.RunningRun(ctx, kind)
}
