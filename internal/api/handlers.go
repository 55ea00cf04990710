package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/pkg/httputil"
	"github.com/safegreen/outreach-engine/internal/service/automation"
	"github.com/safegreen/outreach-engine/internal/service/pacing"
	"github.com/safegreen/outreach-engine/internal/service/runner"
	"github.com/safegreen/outreach-engine/internal/service/suppression"
	"github.com/safegreen/outreach-engine/internal/service/sweep"
)

// RunnerService is the run surface the handlers need.
type RunnerService interface {
	Execute(ctx context.Context, req runner.Request) (*runner.Result, error)
	GetRun(ctx context.Context, id string) (*runner.Result, error)
	LastRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error)
	RunningRun(ctx context.Context, kind domain.CampaignKind) (*domain.CampaignRun, error)
}

// AutomationService is the config/schedule surface the handlers need.
type AutomationService interface {
	GetConfig(ctx context.Context, kind domain.CampaignKind) (*domain.AutomationConfig, error)
	UpdateConfig(ctx context.Context, kind domain.CampaignKind, in automation.UpdateInput) (*domain.AutomationConfig, error)
	Schedule(ctx context.Context, kind domain.CampaignKind, fireAt time.Time, p time.Duration, scope domain.RenewalScope) (*domain.ScheduledRun, error)
	PendingScheduled(ctx context.Context, kind domain.CampaignKind) ([]domain.ScheduledRun, error)
}

// SweepService is the sweep control surface the handlers need.
type SweepService interface {
	Start(ctx context.Context, scope string, opts sweep.StartOptions) (*sweep.Status, error)
	Pause(ctx context.Context, scope string) (*sweep.Status, error)
	Stop(ctx context.Context, scope string) (*sweep.Status, error)
	Process(ctx context.Context, scope string) (*sweep.Status, error)
	GetStatus(ctx context.Context, scope string) (*sweep.Status, error)
	History(ctx context.Context) ([]domain.SweepSummary, error)
}

// SuppressionService is the suppression surface the handlers need.
type SuppressionService interface {
	Search(ctx context.Context, filter suppression.ListFilter) ([]domain.SuppressionEntry, int, error)
	Suppress(ctx context.Context, address string, reason domain.SuppressionReason, detail string) error
	Unsuppress(ctx context.Context, id string) error
	Import(ctx context.Context, body string, reason domain.SuppressionReason) (*suppression.ImportResult, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// RunExporter renders a run into its printable document.
type RunExporter interface {
	RenderRun(run *domain.CampaignRun, entries []domain.RunLogEntry) (string, error)
}

// Handlers holds the wired services behind the HTTP surface.
type Handlers struct {
	runner       RunnerService
	automation   AutomationService
	sweeps       SweepService
	suppressions SuppressionService
	exporter     RunExporter
	validate     *validator.Validate
	now          func() time.Time
}

// NewHandlers wires the handler set.
func NewHandlers(r RunnerService, a AutomationService, sw SweepService, sup SuppressionService, exp RunExporter) *Handlers {
	return &Handlers{
		runner:       r,
		automation:   a,
		sweeps:       sw,
		suppressions: sup,
		exporter:     exp,
		validate:     validator.New(),
		now:          time.Now,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok", "time": h.now().UTC().Format(time.RFC3339)})
}

// GetRun returns one run with its full log.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ExportRun renders the run's printable document.
func (h *Handlers) ExportRun(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	html, err := h.exporter.RenderRun(res.Run, res.Log)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// kindParam resolves and validates the {kind} URL segment.
func kindParam(w http.ResponseWriter, r *http.Request) (domain.CampaignKind, bool) {
	kind := domain.CampaignKind(chi.URLParam(r, "kind"))
	if !domain.ValidKind(kind) {
		httputil.BadRequest(w, "unknown campaign kind: "+string(kind))
		return "", false
	}
	return kind, true
}

// decodeValid decodes the JSON body and runs struct validation.
func (h *Handlers) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !httputil.Decode(w, r, dst) {
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httputil.BadRequest(w, "invalid payload: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps service sentinels onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var valErr *pacing.ValidationError
	switch {
	case errors.Is(err, runner.ErrRunNotFound),
		errors.Is(err, sweep.ErrNoSweep),
		errors.Is(err, suppression.ErrNotFound),
		errors.Is(err, automation.ErrScheduleNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, runner.ErrUnknownKind),
		errors.Is(err, automation.ErrUnknownKind),
		errors.Is(err, automation.ErrBadStartTime),
		errors.Is(err, automation.ErrScheduleInPast),
		errors.Is(err, suppression.ErrInvalidAddress):
		httputil.BadRequest(w, err.Error())
	case errors.As(err, &valErr):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, sweep.ErrNotRunning):
		httputil.Conflict(w, err.Error(), nil)
	default:
		httputil.InternalError(w, err)
	}
}
