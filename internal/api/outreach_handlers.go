package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/pkg/httputil"
	"github.com/safegreen/outreach-engine/internal/service/automation"
	"github.com/safegreen/outreach-engine/internal/service/runner"
)

type runRequest struct {
	PacingSeconds int    `json:"pacing_seconds" validate:"gte=0"`
	Scope         string `json:"scope" validate:"omitempty,oneof=current all"`
	DryRun        bool   `json:"dry_run"`
	AsOf          string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type scheduleRequest struct {
	FireAt        time.Time `json:"fire_at" validate:"required"`
	PacingSeconds int       `json:"pacing_seconds" validate:"gte=0"`
	Scope         string    `json:"scope" validate:"omitempty,oneof=current all"`
}

type autoRequest struct {
	Enabled       bool   `json:"enabled"`
	StartTime     string `json:"start_time" validate:"omitempty,datetime=15:04"`
	PacingSeconds int    `json:"pacing_seconds" validate:"gte=0"`
	Scope         string `json:"scope" validate:"omitempty,oneof=current all"`
}

type outreachStatus struct {
	Config     *domain.AutomationConfig `json:"config"`
	NextAutoAt *time.Time               `json:"next_auto_at,omitempty"`
	LastRun    *domain.CampaignRun      `json:"last_run,omitempty"`
	RunningRun *domain.CampaignRun      `json:"running_run,omitempty"`
	Scheduled  []domain.ScheduledRun    `json:"scheduled,omitempty"`
}

// GetOutreachStatus aggregates everything the dashboard shows for a kind:
// automation config, next auto fire time, last and running runs, and
// pending one-off registrations.
func (h *Handlers) GetOutreachStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	cfg, err := h.automation.GetConfig(ctx, kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	last, err := h.runner.LastRun(ctx, kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	running, err := h.runner.RunningRun(ctx, kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	pending, err := h.automation.PendingScheduled(ctx, kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	st := outreachStatus{Config: cfg, LastRun: last, RunningRun: running, Scheduled: pending}
	if next := automation.NextDue(*cfg, h.now()); !next.IsZero() {
		st.NextAutoAt = &next
	}
	httputil.OK(w, st)
}

// TriggerRun starts a run synchronously and returns it with its full log.
// A concurrent run of the same kind yields 409 carrying the running run.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var req runRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	trigger := domain.TriggerManual
	if req.DryRun {
		trigger = domain.TriggerDryRun
	}
	runReq := runner.Request{
		Kind:    kind,
		Trigger: trigger,
		Scope:   domain.RenewalScope(req.Scope),
		Pacing:  time.Duration(req.PacingSeconds) * time.Second,
	}
	if req.AsOf != "" {
		asOf, _ := time.Parse("2006-01-02", req.AsOf)
		runReq.AsOf = asOf
	}

	res, err := h.runner.Execute(r.Context(), runReq)
	if err != nil {
		if errors.Is(err, runner.ErrAlreadyRunning) {
			running, _ := h.runner.RunningRun(r.Context(), kind)
			httputil.Conflict(w, "a run of this kind is already in progress", running)
			return
		}
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ScheduleRun registers a one-off run for a future time.
func (h *Handlers) ScheduleRun(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	s, err := h.automation.Schedule(r.Context(), kind,
		req.FireAt, time.Duration(req.PacingSeconds)*time.Second, domain.RenewalScope(req.Scope))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.Created(w, s)
}

// UpdateAutomation mutates a kind's auto-run configuration.
func (h *Handlers) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var req autoRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	cfg, err := h.automation.UpdateConfig(r.Context(), kind, automation.UpdateInput{
		Enabled:   req.Enabled,
		StartTime: req.StartTime,
		Pacing:    time.Duration(req.PacingSeconds) * time.Second,
		Scope:     domain.RenewalScope(req.Scope),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, cfg)
}
