package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/runner"
)

const (
	// DefaultTickInterval is how often the scheduler evaluates triggers
	// and advances running sweeps.
	DefaultTickInterval = 30 * time.Second

	// prunePeriod is how often expired dedupe marks are cleaned out.
	prunePeriod = time.Hour
)

// AutomationStore narrows the automation service to trigger evaluation.
type AutomationStore interface {
	DueAuto(ctx context.Context, now time.Time) ([]domain.AutomationConfig, error)
	MarkAutoRan(ctx context.Context, kind domain.CampaignKind, at time.Time) error
	DueScheduled(ctx context.Context, now time.Time) ([]domain.ScheduledRun, error)
	CompleteScheduled(ctx context.Context, id, runID string) error
}

// CampaignRunner executes a campaign run synchronously.
type CampaignRunner interface {
	Execute(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// SweepDriver advances every running bounce sweep by one batch.
type SweepDriver interface {
	ProcessRunning(ctx context.Context) error
}

// LedgerJanitor deletes expired dedupe marks.
type LedgerJanitor interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// AutomationScheduler polls the automation configs and one-off schedule
// registrations, launching campaign runs when their time arrives. It also
// drives running sweeps forward one batch per tick.
type AutomationScheduler struct {
	automation AutomationStore
	runner     CampaignRunner
	sweeps     SweepDriver
	ledger     LedgerJanitor

	tickInterval time.Duration
	now          func() time.Time

	runsFired int64
	errors    int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewAutomationScheduler wires the scheduler. sweeps and ledger may be nil
// when the deployment runs those elsewhere.
func NewAutomationScheduler(store AutomationStore, r CampaignRunner, sweeps SweepDriver, ledger LedgerJanitor, tick time.Duration) *AutomationScheduler {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &AutomationScheduler{
		automation:   store,
		runner:       r,
		sweeps:       sweeps,
		ledger:       ledger,
		tickInterval: tick,
		now:          time.Now,
	}
}

// Start begins the polling loops.
func (as *AutomationScheduler) Start() error {
	as.mu.Lock()
	if as.running {
		as.mu.Unlock()
		return errors.New("scheduler already running")
	}
	as.running = true
	as.ctx, as.cancel = context.WithCancel(context.Background())
	as.mu.Unlock()

	log.Printf("[AutomationScheduler] Starting with tick interval: %v", as.tickInterval)

	as.wg.Add(1)
	go as.tickLoop()

	if as.ledger != nil {
		as.wg.Add(1)
		go as.pruneLoop()
	}
	return nil
}

// Stop cancels the loops and waits for in-flight runs to wind down.
func (as *AutomationScheduler) Stop() {
	as.mu.Lock()
	if !as.running {
		as.mu.Unlock()
		return
	}
	as.running = false
	as.mu.Unlock()

	log.Printf("[AutomationScheduler] Stopping...")
	as.cancel()
	as.wg.Wait()
	log.Printf("[AutomationScheduler] Stopped. Runs fired: %d, errors: %d",
		atomic.LoadInt64(&as.runsFired), atomic.LoadInt64(&as.errors))
}

func (as *AutomationScheduler) tickLoop() {
	defer as.wg.Done()

	// First evaluation runs immediately; a trigger already due at startup
	// must not idle out a full interval.
	as.tick(as.ctx)

	ticker := time.NewTicker(as.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-as.ctx.Done():
			return
		case <-ticker.C:
			as.tick(as.ctx)
		}
	}
}

func (as *AutomationScheduler) pruneLoop() {
	defer as.wg.Done()

	ticker := time.NewTicker(prunePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-as.ctx.Done():
			return
		case <-ticker.C:
			n, err := as.ledger.PruneExpired(as.ctx)
			if err != nil {
				log.Printf("[AutomationScheduler] Dedupe prune failed: %v", err)
				atomic.AddInt64(&as.errors, 1)
			} else if n > 0 {
				log.Printf("[AutomationScheduler] Pruned %d expired dedupe marks", n)
			}
		}
	}
}

// tick performs one evaluation pass: daily auto triggers, one-off
// registrations, then a batch of sweep progress.
func (as *AutomationScheduler) tick(ctx context.Context) {
	now := as.now()

	as.fireAutoRuns(ctx, now)
	as.fireScheduledRuns(ctx, now)

	if as.sweeps != nil {
		if err := as.sweeps.ProcessRunning(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[AutomationScheduler] Sweep processing error: %v", err)
			atomic.AddInt64(&as.errors, 1)
		}
	}
}

// fireAutoRuns launches runs for kinds whose daily trigger is due. The
// last-run stamp is written before the run launches so a slow run cannot
// trigger twice in one day.
func (as *AutomationScheduler) fireAutoRuns(ctx context.Context, now time.Time) {
	due, err := as.automation.DueAuto(ctx, now)
	if err != nil {
		log.Printf("[AutomationScheduler] Error evaluating auto triggers: %v", err)
		atomic.AddInt64(&as.errors, 1)
		return
	}

	for _, cfg := range due {
		if err := as.automation.MarkAutoRan(ctx, cfg.Kind, now); err != nil {
			log.Printf("[AutomationScheduler] Error stamping auto run for %s: %v", cfg.Kind, err)
			atomic.AddInt64(&as.errors, 1)
			continue
		}

		req := runner.Request{
			Kind:    cfg.Kind,
			Trigger: domain.TriggerAuto,
			Scope:   cfg.Scope,
			Pacing:  time.Duration(cfg.PacingSeconds) * time.Second,
		}
		log.Printf("[AutomationScheduler] Auto trigger due for %s (start %s)", cfg.Kind, cfg.StartTime)
		as.launch(req, "")
	}
}

// fireScheduledRuns launches due one-off registrations. The registration
// is completed after the run executes so a registration that loses the
// per-kind run lock stays pending and refires on a later tick.
func (as *AutomationScheduler) fireScheduledRuns(ctx context.Context, now time.Time) {
	due, err := as.automation.DueScheduled(ctx, now)
	if err != nil {
		log.Printf("[AutomationScheduler] Error evaluating scheduled runs: %v", err)
		atomic.AddInt64(&as.errors, 1)
		return
	}

	for _, r := range due {
		req := runner.Request{
			Kind:    r.Kind,
			Trigger: domain.TriggerScheduled,
			Scope:   r.Scope,
			Pacing:  time.Duration(r.PacingSeconds) * time.Second,
		}
		log.Printf("[AutomationScheduler] Scheduled run %s due for %s", r.ID, r.Kind)
		as.launch(req, r.ID)
	}
}

// launch executes a run in its own goroutine; paced runs block for
// minutes and must not stall the tick loop.
func (as *AutomationScheduler) launch(req runner.Request, scheduleID string) {
	as.wg.Add(1)
	go func() {
		defer as.wg.Done()

		res, err := as.runner.Execute(as.ctx, req)
		if err != nil {
			if errors.Is(err, runner.ErrAlreadyRunning) {
				log.Printf("[AutomationScheduler] %s run skipped: a run of this kind is already in progress", req.Kind)
			} else {
				log.Printf("[AutomationScheduler] %s run failed to start: %v", req.Kind, err)
				atomic.AddInt64(&as.errors, 1)
			}
			return
		}
		atomic.AddInt64(&as.runsFired, 1)

		if scheduleID != "" {
			if err := as.automation.CompleteScheduled(context.WithoutCancel(as.ctx), scheduleID, res.Run.ID); err != nil {
				log.Printf("[AutomationScheduler] Error completing scheduled run %s: %v", scheduleID, err)
			}
		}
		log.Printf("[AutomationScheduler] %s run %s finished: %s (sent %d, failed %d)",
			req.Kind, res.Run.ID, res.Run.Status, res.Run.Sent, res.Run.Failed)
	}()
}
