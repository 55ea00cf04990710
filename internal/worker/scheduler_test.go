package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/runner"
)

type fakeStore struct {
	mu        sync.Mutex
	auto      []domain.AutomationConfig
	scheduled []domain.ScheduledRun

	markedAuto []domain.CampaignKind
	completed  map[string]string // schedule id -> run id
}

func newFakeStore() *fakeStore {
	return &fakeStore{completed: make(map[string]string)}
}

func (f *fakeStore) DueAuto(context.Context, time.Time) ([]domain.AutomationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auto, nil
}

func (f *fakeStore) MarkAutoRan(_ context.Context, kind domain.CampaignKind, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedAuto = append(f.markedAuto, kind)
	return nil
}

func (f *fakeStore) DueScheduled(context.Context, time.Time) ([]domain.ScheduledRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduled, nil
}

func (f *fakeStore) CompleteScheduled(_ context.Context, id, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = runID
	return nil
}

type fakeRunner struct {
	mu   sync.Mutex
	reqs []runner.Request
	err  error
}

func (f *fakeRunner) Execute(_ context.Context, req runner.Request) (*runner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.reqs = append(f.reqs, req)
	return &runner.Result{Run: &domain.CampaignRun{
		ID:     uuid.NewString(),
		Kind:   req.Kind,
		Status: domain.RunCompleted,
	}}, nil
}

type fakeSweeps struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSweeps) ProcessRunning(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func newTestScheduler(store *fakeStore, r *fakeRunner, sweeps SweepDriver) *AutomationScheduler {
	as := NewAutomationScheduler(store, r, sweeps, nil, time.Second)
	as.ctx, as.cancel = context.WithCancel(context.Background())
	return as
}

func TestTickFiresAutoRuns(t *testing.T) {
	store := newFakeStore()
	store.auto = []domain.AutomationConfig{
		{Kind: domain.KindBirthday, Enabled: true, StartTime: "09:00", PacingSeconds: 40},
	}
	r := &fakeRunner{}
	as := newTestScheduler(store, r, nil)

	as.tick(as.ctx)
	as.wg.Wait()

	if len(store.markedAuto) != 1 || store.markedAuto[0] != domain.KindBirthday {
		t.Fatalf("markedAuto = %v, want [birthday]", store.markedAuto)
	}
	if len(r.reqs) != 1 {
		t.Fatalf("executed %d runs, want 1", len(r.reqs))
	}
	req := r.reqs[0]
	if req.Trigger != domain.TriggerAuto {
		t.Errorf("trigger = %s, want auto", req.Trigger)
	}
	if req.Pacing != 40*time.Second {
		t.Errorf("pacing = %v, want 40s", req.Pacing)
	}
}

func TestTickFiresScheduledRunAndCompletesIt(t *testing.T) {
	store := newFakeStore()
	store.scheduled = []domain.ScheduledRun{
		{ID: "sch-1", Kind: domain.KindRenewal, Scope: domain.ScopeAllYears, PacingSeconds: 30},
	}
	r := &fakeRunner{}
	as := newTestScheduler(store, r, nil)

	as.tick(as.ctx)
	as.wg.Wait()

	if len(r.reqs) != 1 {
		t.Fatalf("executed %d runs, want 1", len(r.reqs))
	}
	req := r.reqs[0]
	if req.Trigger != domain.TriggerScheduled || req.Scope != domain.ScopeAllYears {
		t.Errorf("request = %+v, want scheduled trigger with all-years scope", req)
	}

	runID, ok := store.completed["sch-1"]
	if !ok {
		t.Fatal("registration was not completed")
	}
	if runID == "" {
		t.Error("completion did not record the run id")
	}
}

func TestScheduledRunStaysPendingWhenKindBusy(t *testing.T) {
	store := newFakeStore()
	store.scheduled = []domain.ScheduledRun{
		{ID: "sch-1", Kind: domain.KindBirthday, PacingSeconds: 30},
	}
	r := &fakeRunner{err: runner.ErrAlreadyRunning}
	as := newTestScheduler(store, r, nil)

	as.tick(as.ctx)
	as.wg.Wait()

	if _, ok := store.completed["sch-1"]; ok {
		t.Error("registration completed despite the run never starting")
	}
}

func TestTickAdvancesRunningSweeps(t *testing.T) {
	store := newFakeStore()
	sweeps := &fakeSweeps{}
	as := newTestScheduler(store, &fakeRunner{}, sweeps)

	as.tick(as.ctx)
	as.tick(as.ctx)
	as.wg.Wait()

	if sweeps.calls != 2 {
		t.Errorf("ProcessRunning called %d times, want 2", sweeps.calls)
	}
}

func TestStartEvaluatesImmediately(t *testing.T) {
	store := newFakeStore()
	store.auto = []domain.AutomationConfig{
		{Kind: domain.KindBirthday, Enabled: true, StartTime: "09:00", PacingSeconds: 40},
	}
	r := &fakeRunner{}

	// A tick interval far beyond the test's lifetime: only the startup
	// evaluation can fire the run.
	as := NewAutomationScheduler(store, r, nil, nil, time.Hour)
	if err := as.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		fired := len(r.reqs)
		r.mu.Unlock()
		if fired == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	as.Stop()

	if len(r.reqs) != 1 {
		t.Fatalf("executed %d runs before the first interval, want 1", len(r.reqs))
	}
}

func TestStartIsExclusive(t *testing.T) {
	as := NewAutomationScheduler(newFakeStore(), &fakeRunner{}, nil, nil, time.Minute)
	if err := as.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer as.Stop()

	if err := as.Start(); err == nil {
		t.Error("second Start succeeded, want error")
	}
}
