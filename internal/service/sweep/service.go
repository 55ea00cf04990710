package sweep

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/pkg/logger"
)

// Batch size clamp and defaults.
const (
	MinBatchSize     = 20
	MaxBatchSize     = 500
	DefaultBatchSize = 200

	// History retention and the high-bounce alert thresholds.
	HistoryLimit        = 100
	AlertBounceCount    = 20
	AlertBounceRate     = 0.1
	DefaultScope        = "all"
)

// Sentinel errors for the sweep service layer.
var (
	ErrNotRunning = errors.New("sweep is not running")
	ErrNoSweep    = errors.New("no sweep exists for this scope")
)

// Status is the caller-facing view of a sweep, with the alert flag
// computed from the thresholds.
type Status struct {
	domain.SweepState
	Alert bool `json:"alert"`
}

// StartOptions tunes one Start call. Zero values take defaults.
type StartOptions struct {
	Resume     bool
	BatchSize  int
	ExternalMX bool
}

// Service is the bounce sweep engine. One sweep per scope may run at a
// time; all state is persisted so any process can drive the next tick.
type Service struct {
	repo       Repository
	contacts   ContactPager
	suppressor Suppressor
	prober     ExternalProber // used only when a sweep sets ExternalMX
	now        func() time.Time
}

// NewService wires the sweep engine. prober may be nil when external
// probing is never enabled.
func NewService(repo Repository, contacts ContactPager, suppressor Suppressor, prober ExternalProber) *Service {
	return &Service{repo: repo, contacts: contacts, suppressor: suppressor, prober: prober, now: time.Now}
}

// Start begins or resumes a sweep over the scope. Starting a scope whose
// sweep is already running is a no-op returning the current status.
func (s *Service) Start(ctx context.Context, scope string, opts StartOptions) (*Status, error) {
	if scope == "" {
		scope = DefaultScope
	}
	state, err := s.repo.GetState(ctx, scope)
	if err != nil {
		return nil, err
	}
	if state != nil && state.Status == domain.SweepRunning {
		return s.status(state), nil
	}

	batch := clampBatch(opts.BatchSize)
	now := s.now().UTC()

	if state == nil || !opts.Resume {
		total, err := s.contacts.CountByScope(ctx, scope)
		if err != nil {
			return nil, err
		}
		state = &domain.SweepState{
			Scope:      scope,
			Cursor:     0,
			TotalCount: total,
			StartedAt:  &now,
		}
	}
	state.Status = domain.SweepRunning
	state.BatchSize = batch
	state.ExternalMX = opts.ExternalMX
	state.UpdatedAt = now
	if state.StartedAt == nil {
		state.StartedAt = &now
	}

	if err := s.repo.SaveState(ctx, state); err != nil {
		return nil, err
	}
	logger.Info("sweep started", "scope", scope, "resume", opts.Resume, "cursor", state.Cursor, "total", state.TotalCount)
	return s.status(state), nil
}

// Pause stops issuing probes but keeps the cursor for a later resume.
func (s *Service) Pause(ctx context.Context, scope string) (*Status, error) {
	state, err := s.mustState(ctx, scope)
	if err != nil {
		return nil, err
	}
	if state.Status != domain.SweepRunning {
		return nil, ErrNotRunning
	}
	state.Status = domain.SweepPaused
	state.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveState(ctx, state); err != nil {
		return nil, err
	}
	return s.status(state), nil
}

// Stop terminates the sweep and records a history summary. Only a fresh
// Start (without resume) clears the cursor afterwards.
func (s *Service) Stop(ctx context.Context, scope string) (*Status, error) {
	state, err := s.mustState(ctx, scope)
	if err != nil {
		return nil, err
	}
	if state.Status == domain.SweepStopped {
		return s.status(state), nil
	}
	return s.finish(ctx, state, false)
}

// GetStatus returns the current state for a scope.
func (s *Service) GetStatus(ctx context.Context, scope string) (*Status, error) {
	state, err := s.mustState(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.status(state), nil
}

// History returns the recorded sweep summaries, newest first.
func (s *Service) History(ctx context.Context) ([]domain.SweepSummary, error) {
	return s.repo.History(ctx, HistoryLimit)
}

// ProcessRunning issues one Process tick for every running scope. The
// scheduler calls this each loop iteration so sweeps progress without the
// engine self-looping.
func (s *Service) ProcessRunning(ctx context.Context) error {
	scopes, err := s.repo.RunningScopes(ctx)
	if err != nil {
		return err
	}
	for _, scope := range scopes {
		if _, err := s.Process(ctx, scope); err != nil {
			logger.Error("sweep tick failed", "scope", scope, "error", err.Error())
		}
	}
	return nil
}

// Process advances one batch. The cursor is persisted before probing so a
// crash mid-batch never causes re-probing on resume. Paused or stopped
// sweeps make Process a no-op that reports current status.
func (s *Service) Process(ctx context.Context, scope string) (*Status, error) {
	state, err := s.mustState(ctx, scope)
	if err != nil {
		return nil, err
	}
	if state.Status != domain.SweepRunning {
		return s.status(state), nil
	}
	if state.Finished() {
		return s.finish(ctx, state, true)
	}

	offset := state.Cursor
	batch := clampBatch(state.BatchSize)
	if remaining := state.TotalCount - offset; remaining < batch {
		batch = remaining
	}

	contacts, err := s.contacts.PageByScope(ctx, state.Scope, offset, batch)
	if err != nil {
		return nil, err
	}

	// Advance and persist the cursor before any probe runs.
	state.Cursor = offset + len(contacts)
	state.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	for _, c := range contacts {
		if ctx.Err() != nil {
			break
		}
		bounced := s.probeOne(ctx, state, c)
		state.CheckedCount++
		if bounced {
			state.BounceCount++
		}
	}

	state.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	// A short or empty page means contacts left the scope after TotalCount
	// was taken; the scope is exhausted even though the cursor never
	// reaches the stale total.
	if state.Finished() || len(contacts) < batch {
		return s.finish(ctx, state, true)
	}
	return s.status(state), nil
}

// probeOne checks one contact and suppresses on a bounce signal. A probe
// blowing up is logged and the contact left unresolved — one bad probe
// never halts the batch.
func (s *Service) probeOne(ctx context.Context, state *domain.SweepState, c domain.Contact) (bounced bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sweep probe panicked", "scope", state.Scope, "document", c.Document)
			bounced = false
		}
	}()

	if c.Email == "" {
		return false
	}

	res := CheckLocal(c.Email)
	if res.Deliverable && state.ExternalMX && s.prober != nil {
		dom := c.Email[strings.LastIndex(c.Email, "@")+1:]
		res = s.prober.Probe(ctx, dom)
	}
	if res.Deliverable {
		return false
	}

	reason := Classify(res.Signal)
	if err := s.suppressor.Suppress(ctx, c.Email, reason, res.Signal); err != nil {
		logger.Error("sweep suppress failed", "scope", state.Scope, "email", c.Email, "error", err.Error())
		return false
	}
	return true
}

func (s *Service) finish(ctx context.Context, state *domain.SweepState, completed bool) (*Status, error) {
	now := s.now().UTC()
	summary := &domain.SweepSummary{
		Scope:        state.Scope,
		CheckedCount: state.CheckedCount,
		TotalCount:   state.TotalCount,
		BounceCount:  state.BounceCount,
		Completed:    completed,
		StartedAt:    state.StartedAt,
		EndedAt:      now,
	}
	if err := s.repo.AppendSummary(ctx, summary); err != nil {
		return nil, err
	}

	state.Status = domain.SweepStopped
	state.UpdatedAt = now
	if err := s.repo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	st := s.status(state)
	if st.Alert {
		logger.Warn("sweep found a high bounce volume",
			"scope", state.Scope, "bounces", state.BounceCount, "checked", state.CheckedCount)
	}
	logger.Info("sweep finished", "scope", state.Scope, "completed", completed,
		"checked", state.CheckedCount, "bounces", state.BounceCount)
	return st, nil
}

func (s *Service) mustState(ctx context.Context, scope string) (*domain.SweepState, error) {
	if scope == "" {
		scope = DefaultScope
	}
	state, err := s.repo.GetState(ctx, scope)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNoSweep
	}
	return state, nil
}

func (s *Service) status(state *domain.SweepState) *Status {
	return &Status{
		SweepState: *state,
		Alert:      state.BounceCount >= AlertBounceCount || state.BounceRate() >= AlertBounceRate,
	}
}

func clampBatch(n int) int {
	if n == 0 {
		return DefaultBatchSize
	}
	if n < MinBatchSize {
		return MinBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
