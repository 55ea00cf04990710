package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/gateway"
	"github.com/safegreen/outreach-engine/internal/pkg/distlock"
	"github.com/safegreen/outreach-engine/internal/service/selector"
)

// memRepo is an in-memory run repository for unit testing.
type memRepo struct {
	mu   sync.Mutex
	runs map[string]*domain.CampaignRun
	logs map[string][]domain.RunLogEntry
}

func newMemRepo() *memRepo {
	return &memRepo{runs: make(map[string]*domain.CampaignRun), logs: make(map[string][]domain.RunLogEntry)}
}

func (m *memRepo) CreateRun(_ context.Context, run *domain.CampaignRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memRepo) MarkRunning(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.Status != domain.RunPending {
		return false, nil
	}
	r.Status = domain.RunRunning
	r.StartedAt = &at
	return true, nil
}

func (m *memRepo) FinishRun(_ context.Context, run *domain.CampaignRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memRepo) GetRun(_ context.Context, id string) (*domain.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) AppendLog(_ context.Context, e *domain.RunLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[e.RunID] = append(m.logs[e.RunID], *e)
	return nil
}

func (m *memRepo) LogForRun(_ context.Context, runID string) ([]domain.RunLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RunLogEntry(nil), m.logs[runID]...), nil
}

func (m *memRepo) LastRun(_ context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *domain.CampaignRun
	for _, r := range m.runs {
		if r.Kind != kind {
			continue
		}
		if last == nil || r.CreatedAt.After(last.CreatedAt) {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (m *memRepo) RunningRun(_ context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.Kind == kind && r.Status == domain.RunRunning {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeSelector returns a canned result.
type fakeSelector struct {
	result *selector.Result
	err    error
}

func (f *fakeSelector) Select(_ context.Context, _ domain.CampaignKind, _ domain.RenewalScope, _ time.Time) (*selector.Result, error) {
	return f.result, f.err
}

// fakeDispatcher records every send.
type fakeDispatcher struct {
	mu       sync.Mutex
	sends    []string
	failFor  map[string]bool
	outcomes map[string]*gateway.Outcome
}

func (f *fakeDispatcher) Send(_ context.Context, phone, _ string) (*gateway.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, phone)
	if out, ok := f.outcomes[phone]; ok {
		return out, nil
	}
	if f.failFor[phone] {
		return &gateway.Outcome{Status: gateway.StatusFailed, Detail: "gateway down", AssistLink: gateway.AssistLink(phone, "x")}, nil
	}
	return &gateway.Outcome{Status: gateway.StatusSent, Channel: "primary", Attempted: []string{"primary"}}, nil
}

// fakeLedger records marks.
type fakeLedger struct {
	mu    sync.Mutex
	marks []string
}

func (f *fakeLedger) Mark(_ context.Context, recipient string, kind domain.CampaignKind, reference, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, recipient+"|"+string(kind)+"|"+reference)
	return nil
}

type fakeSuppression struct{ blocked map[string]bool }

func (f *fakeSuppression) IsSuppressed(_ context.Context, address string) (bool, error) {
	return f.blocked[address], nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ domain.CampaignKind, c domain.Contact) (string, error) {
	return "hello " + c.FirstName(), nil
}

// localLock is an in-process DistLock for tests.
type localLock struct {
	mu   *sync.Mutex
	held *map[string]bool
	key  string
}

func (l *localLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if (*l.held)[l.key] {
		return false, nil
	}
	(*l.held)[l.key] = true
	return true, nil
}

func (l *localLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(*l.held, l.key)
	return nil
}

func (l *localLock) Extend(_ context.Context, _ time.Duration) error { return nil }

func newLockFactory() LockFactory {
	mu := &sync.Mutex{}
	held := map[string]bool{}
	return func(key string, _ time.Duration) distlock.DistLock {
		return &localLock{mu: mu, held: &held, key: key}
	}
}

func candidate(doc, phone string) selector.Candidate {
	return selector.Candidate{
		Contact:   domain.Contact{Document: doc, Name: "Contact " + doc, Phone: phone},
		Phone:     phone,
		Reference: "2026",
	}
}

func newTestService(repo Repository, sel Selector, disp Dispatcher, led Ledger, sup SuppressionChecker) *Service {
	svc := NewService(repo, sel, disp, led, sup, fakeRenderer{}, newLockFactory(), 40*time.Second)
	// Tests never sleep out pacing slots.
	svc.waitUntil = func(ctx context.Context, _ time.Time) error { return ctx.Err() }
	return svc
}

func TestExecuteHappyPath(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001"), candidate("222", "5511987650002")},
		Skips: []selector.Skip{
			{Contact: domain.Contact{Document: "333"}, Outcome: domain.OutcomeSkippedNoPhone, Detail: "no usable phone number"},
		},
		Reference: "2026",
	}}
	disp := &fakeDispatcher{}
	led := &fakeLedger{}

	res, err := newTestService(repo, sel, disp, led, &fakeSuppression{}).Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if res.Run.Status != domain.RunCompleted {
		t.Fatalf("status %s", res.Run.Status)
	}
	if res.Run.TotalCandidates != 3 || res.Run.Sent != 2 || res.Run.SkippedNoPhone != 1 {
		t.Fatalf("counters: %+v", res.Run)
	}
	// Reconciliation invariant.
	if res.Run.TotalCandidates != res.Run.Sent+res.Run.Failed+res.Run.SkippedDuplicate+res.Run.SkippedNoPhone+res.Run.Simulated {
		t.Fatal("counters do not reconcile")
	}
	if len(led.marks) != 2 {
		t.Fatalf("expected 2 dedupe marks, got %v", led.marks)
	}
	if len(disp.sends) != 2 {
		t.Fatalf("expected 2 dispatches, got %v", disp.sends)
	}
}

func TestExecutePacedSchedule(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001"), candidate("222", "5511987650002"), candidate("333", "5511987650003")},
	}}
	svc := newTestService(repo, sel, &fakeDispatcher{}, &fakeLedger{}, &fakeSuppression{})

	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	res, err := svc.Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual, Pacing: 40 * time.Second, StartAt: t0,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for i, e := range res.Log {
		want := t0.Add(time.Duration(i) * 40 * time.Second)
		if e.ScheduledAt == nil || !e.ScheduledAt.Equal(want) {
			t.Errorf("entry %d scheduled at %v, want %v", i, e.ScheduledAt, want)
		}
	}
}

func TestExecuteDryRunHasNoSideEffects(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001")},
	}}
	disp := &fakeDispatcher{}
	led := &fakeLedger{}

	res, err := newTestService(repo, sel, disp, led, &fakeSuppression{}).Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerDryRun,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(disp.sends) != 0 {
		t.Fatal("dry run invoked the gateway")
	}
	if len(led.marks) != 0 {
		t.Fatal("dry run wrote a dedupe mark")
	}
	if res.Run.Simulated != 1 || res.Run.Sent != 0 {
		t.Fatalf("counters: %+v", res.Run)
	}
	if res.Log[0].Message == "" || res.Log[0].ScheduledAt == nil {
		t.Fatal("dry run log must carry the rendered message and schedule")
	}
}

func TestExecuteItemFailureDoesNotAbortOrMark(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001"), candidate("222", "5511987650002")},
	}}
	disp := &fakeDispatcher{failFor: map[string]bool{"5511987650001": true}}
	led := &fakeLedger{}

	res, err := newTestService(repo, sel, disp, led, &fakeSuppression{}).Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Run.Status != domain.RunCompleted {
		t.Fatalf("status %s", res.Run.Status)
	}
	if res.Run.Sent != 1 || res.Run.Failed != 1 {
		t.Fatalf("counters: %+v", res.Run)
	}
	// Failed item keeps retry open: no mark for it.
	if len(led.marks) != 1 || led.marks[0] != "222|birthday|2026" {
		t.Fatalf("marks: %v", led.marks)
	}
	// Assist link recorded on the failed entry.
	var failedEntry *domain.RunLogEntry
	for i := range res.Log {
		if res.Log[i].Outcome == domain.OutcomeFailed {
			failedEntry = &res.Log[i]
		}
	}
	if failedEntry == nil || !strings.Contains(failedEntry.Detail, "assist: https://wa.me/") {
		t.Fatalf("failed entry missing assist link: %+v", failedEntry)
	}
}

func TestExecuteInterruptedMidPacingFailsRun(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001"), candidate("222", "5511987650002"), candidate("333", "5511987650003")},
	}}
	disp := &fakeDispatcher{}
	svc := newTestService(repo, sel, disp, &fakeLedger{}, &fakeSuppression{})

	// The client disconnects while the second item waits out its slot.
	waits := 0
	svc.waitUntil = func(_ context.Context, _ time.Time) error {
		waits++
		if waits > 1 {
			return context.Canceled
		}
		return nil
	}

	res, err := svc.Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if res.Run.Status != domain.RunFailed {
		t.Fatalf("interrupted run persisted as %s", res.Run.Status)
	}
	if res.Run.ErrorDetail == "" {
		t.Fatal("expected error detail on the interrupted run")
	}
	// Only the first item was dispatched; its log entry survives.
	if len(disp.sends) != 1 || res.Run.Sent != 1 {
		t.Fatalf("sends=%d counters: %+v", len(disp.sends), res.Run)
	}
	if len(res.Log) != 1 {
		t.Fatalf("log entries: %d", len(res.Log))
	}

	// Reconciliation holds only for completed runs; the persisted status
	// must reflect that this one is not.
	stored, _ := repo.GetRun(context.Background(), res.Run.ID)
	if stored.Status != domain.RunFailed {
		t.Fatalf("stored status %s", stored.Status)
	}
}

func TestExecuteSelectionErrorFailsRun(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{err: &selector.SelectionError{Kind: "birthday", Err: errors.New("crm unreachable")}}

	res, err := newTestService(repo, sel, &fakeDispatcher{}, &fakeLedger{}, &fakeSuppression{}).Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Run.Status != domain.RunFailed {
		t.Fatalf("status %s", res.Run.Status)
	}
	if res.Run.ErrorDetail == "" {
		t.Fatal("expected error detail preserved")
	}
}

func TestExecuteDefensiveSuppressionRecheck(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001")},
	}}
	disp := &fakeDispatcher{}
	sup := &fakeSuppression{blocked: map[string]bool{"5511987650001": true}}

	res, err := newTestService(repo, sel, disp, &fakeLedger{}, sup).Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(disp.sends) != 0 {
		t.Fatal("suppressed address reached the gateway")
	}
	if res.Run.SkippedDuplicate != 1 {
		t.Fatalf("counters: %+v", res.Run)
	}
}

func TestExecuteRejectsDuplicateTrigger(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{}}
	locks := newLockFactory()
	svc := NewService(repo, sel, &fakeDispatcher{}, &fakeLedger{}, &fakeSuppression{}, fakeRenderer{}, locks, 40*time.Second)
	svc.waitUntil = func(ctx context.Context, _ time.Time) error { return ctx.Err() }

	// Hold the kind lock as a concurrent run would.
	held := locks("run:birthday", time.Minute)
	if ok, _ := held.Acquire(context.Background()); !ok {
		t.Fatal("setup: could not pre-acquire lock")
	}

	_, err := svc.Execute(context.Background(), Request{Kind: domain.KindBirthday, Trigger: domain.TriggerManual})
	if err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestExecuteValidation(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeSelector{result: &selector.Result{}}, &fakeDispatcher{}, &fakeLedger{}, &fakeSuppression{})

	if _, err := svc.Execute(context.Background(), Request{Kind: "promo", Trigger: domain.TriggerManual}); err != ErrUnknownKind {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := svc.Execute(context.Background(), Request{Kind: domain.KindBirthday, Trigger: domain.TriggerManual, Pacing: -time.Second}); err == nil {
		t.Fatal("expected pacing validation error")
	}
}

func TestExecuteCooldownRecordedAsFailed(t *testing.T) {
	repo := newMemRepo()
	sel := &fakeSelector{result: &selector.Result{
		Candidates: []selector.Candidate{candidate("111", "5511987650001")},
	}}
	disp := &cooldownDispatcher{}

	res, err := newTestService(repo, sel, disp, &fakeLedger{}, &fakeSuppression{}).Execute(context.Background(), Request{
		Kind: domain.KindBirthday, Trigger: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Run.Failed != 1 {
		t.Fatalf("counters: %+v", res.Run)
	}
	if !strings.Contains(res.Log[0].Detail, "cooldown") {
		t.Fatalf("detail: %q", res.Log[0].Detail)
	}
}

type cooldownDispatcher struct{}

func (cooldownDispatcher) Send(_ context.Context, phone, _ string) (*gateway.Outcome, error) {
	return nil, errors.Join(gateway.ErrCooldownActive, errors.New("retry in 10s"))
}
