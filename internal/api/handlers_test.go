package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/safegreen/outreach-engine/internal/api"
	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/service/automation"
	"github.com/safegreen/outreach-engine/internal/service/runner"
	"github.com/safegreen/outreach-engine/internal/service/suppression"
	"github.com/safegreen/outreach-engine/internal/service/sweep"
)

type fakeRunner struct {
	lastReq runner.Request
	execErr error
	running *domain.CampaignRun
	runs    map[string]*runner.Result
}

func (f *fakeRunner) Execute(_ context.Context, req runner.Request) (*runner.Result, error) {
	f.lastReq = req
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &runner.Result{Run: &domain.CampaignRun{ID: "run-1", Kind: req.Kind, Trigger: req.Trigger, Status: domain.RunCompleted}}, nil
}

func (f *fakeRunner) GetRun(_ context.Context, id string) (*runner.Result, error) {
	if res, ok := f.runs[id]; ok {
		return res, nil
	}
	return nil, runner.ErrRunNotFound
}

func (f *fakeRunner) LastRun(context.Context, domain.CampaignKind) (*domain.CampaignRun, error) {
	return nil, nil
}

func (f *fakeRunner) RunningRun(context.Context, domain.CampaignKind) (*domain.CampaignRun, error) {
	return f.running, nil
}

type fakeAutomation struct {
	cfg         *domain.AutomationConfig
	scheduleErr error
}

func (f *fakeAutomation) GetConfig(_ context.Context, kind domain.CampaignKind) (*domain.AutomationConfig, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}
	return &domain.AutomationConfig{Kind: kind, StartTime: "09:00", PacingSeconds: 40}, nil
}

func (f *fakeAutomation) UpdateConfig(_ context.Context, kind domain.CampaignKind, in automation.UpdateInput) (*domain.AutomationConfig, error) {
	if in.StartTime != "" {
		if _, err := time.Parse("15:04", in.StartTime); err != nil {
			return nil, automation.ErrBadStartTime
		}
	}
	return &domain.AutomationConfig{Kind: kind, Enabled: in.Enabled, StartTime: in.StartTime}, nil
}

func (f *fakeAutomation) Schedule(_ context.Context, kind domain.CampaignKind, fireAt time.Time, p time.Duration, scope domain.RenewalScope) (*domain.ScheduledRun, error) {
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return &domain.ScheduledRun{ID: "sch-1", Kind: kind, FireAt: fireAt}, nil
}

func (f *fakeAutomation) PendingScheduled(context.Context, domain.CampaignKind) ([]domain.ScheduledRun, error) {
	return nil, nil
}

type fakeSweeps struct {
	status   *sweep.Status
	pauseErr error
}

func (f *fakeSweeps) Start(_ context.Context, scope string, _ sweep.StartOptions) (*sweep.Status, error) {
	return f.status, nil
}

func (f *fakeSweeps) Pause(context.Context, string) (*sweep.Status, error) {
	if f.pauseErr != nil {
		return nil, f.pauseErr
	}
	return f.status, nil
}
func (f *fakeSweeps) Stop(context.Context, string) (*sweep.Status, error)    { return f.status, nil }
func (f *fakeSweeps) Process(context.Context, string) (*sweep.Status, error) { return f.status, nil }
func (f *fakeSweeps) GetStatus(_ context.Context, scope string) (*sweep.Status, error) {
	if f.status == nil {
		return nil, sweep.ErrNoSweep
	}
	return f.status, nil
}
func (f *fakeSweeps) History(context.Context) ([]domain.SweepSummary, error) { return nil, nil }

type fakeSuppressions struct {
	lastFilter suppression.ListFilter
}

func (f *fakeSuppressions) Search(_ context.Context, filter suppression.ListFilter) ([]domain.SuppressionEntry, int, error) {
	f.lastFilter = filter
	return []domain.SuppressionEntry{{ID: "id-1", Address: "bad@example.com", Active: true}}, 1, nil
}

func (f *fakeSuppressions) Suppress(context.Context, string, domain.SuppressionReason, string) error {
	return nil
}
func (f *fakeSuppressions) Unsuppress(_ context.Context, id string) error {
	if id == "missing" {
		return suppression.ErrNotFound
	}
	return nil
}
func (f *fakeSuppressions) Import(_ context.Context, body string, _ domain.SuppressionReason) (*suppression.ImportResult, error) {
	return &suppression.ImportResult{Imported: 2, Invalid: []string{"not-an-address"}}, nil
}
func (f *fakeSuppressions) ExportCSV(_ context.Context, w io.Writer) error {
	_, err := w.Write([]byte("address,reason,active,updated_at\n"))
	return err
}

type fakeExporter struct{}

func (fakeExporter) RenderRun(run *domain.CampaignRun, _ []domain.RunLogEntry) (string, error) {
	return "<html>" + run.ID + "</html>", nil
}

func newTestServer(r *fakeRunner, a *fakeAutomation, sw *fakeSweeps, sup *fakeSuppressions) http.Handler {
	return api.SetupRoutes(api.NewHandlers(r, a, sw, sup, fakeExporter{}))
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	r := &fakeRunner{}
	h := newTestServer(r, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})

	rec := doJSON(t, h, http.MethodPost, "/api/outreach/birthday/run", `{"pacing_seconds":30,"dry_run":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if r.lastReq.Trigger != domain.TriggerDryRun {
		t.Errorf("trigger = %s, want dry_run", r.lastReq.Trigger)
	}
	if r.lastReq.Pacing != 30*time.Second {
		t.Errorf("pacing = %v, want 30s", r.lastReq.Pacing)
	}
}

func TestTriggerRunUnknownKind(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodPost, "/api/outreach/newsletter/run", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerRunConflict(t *testing.T) {
	running := &domain.CampaignRun{ID: "run-busy", Kind: domain.KindBirthday, Status: domain.RunRunning}
	r := &fakeRunner{execErr: runner.ErrAlreadyRunning, running: running}
	h := newTestServer(r, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})

	rec := doJSON(t, h, http.MethodPost, "/api/outreach/birthday/run", `{}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "run-busy") {
		t.Error("409 body does not carry the running run")
	}
}

func TestScheduleRunRejectsPast(t *testing.T) {
	a := &fakeAutomation{scheduleErr: automation.ErrScheduleInPast}
	h := newTestServer(&fakeRunner{}, a, &fakeSweeps{}, &fakeSuppressions{})

	rec := doJSON(t, h, http.MethodPost, "/api/outreach/renewal/schedule",
		`{"fire_at":"2020-01-01T09:00:00Z","scope":"all"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodGet, "/api/runs/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExportRun(t *testing.T) {
	r := &fakeRunner{runs: map[string]*runner.Result{
		"run-1": {Run: &domain.CampaignRun{ID: "run-1"}},
	}}
	h := newTestServer(r, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})

	rec := doJSON(t, h, http.MethodGet, "/api/runs/run-1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "run-1") {
		t.Error("export missing run id")
	}
}

func TestSweepPauseNotRunning(t *testing.T) {
	sw := &fakeSweeps{pauseErr: sweep.ErrNotRunning}
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, sw, &fakeSuppressions{})

	rec := doJSON(t, h, http.MethodPost, "/api/sweep/pause", `{"scope":"all"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSweepStatusNoSweep(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodGet, "/api/sweep/status", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSearchSuppressionsFilters(t *testing.T) {
	sup := &fakeSuppressions{}
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, sup)

	rec := doJSON(t, h, http.MethodGet, "/api/suppressions?search=example&reason=hard_bounce&limit=10&offset=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if sup.lastFilter.Search != "example" || sup.lastFilter.Reason != "hard_bounce" ||
		sup.lastFilter.Limit != 10 || sup.lastFilter.Offset != 5 {
		t.Errorf("filter = %+v", sup.lastFilter)
	}

	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 {
		t.Errorf("total = %d, want 1", body.Total)
	}
}

func TestImportSuppressionsReportsInvalid(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})

	rec := doJSON(t, h, http.MethodPost, "/api/suppressions/import",
		`{"content":"a@example.com, b@example.com; not-an-address"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not-an-address") {
		t.Error("invalid tokens not reported")
	}
}

func TestUnsuppressNotFound(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodPost, "/api/suppressions/unsuppress", `{"id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateAutomationBadStartTime(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodPost, "/api/outreach/birthday/auto",
		`{"enabled":true,"start_time":"25:99"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExportSuppressionsCSV(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAutomation{}, &fakeSweeps{}, &fakeSuppressions{})
	rec := doJSON(t, h, http.MethodGet, "/api/suppressions/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
}
