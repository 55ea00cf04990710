package api

import (
	"net/http"

	"github.com/safegreen/outreach-engine/internal/pkg/httputil"
	"github.com/safegreen/outreach-engine/internal/service/sweep"
)

type sweepStartRequest struct {
	Scope      string `json:"scope"`
	Resume     bool   `json:"resume"`
	BatchSize  int    `json:"batch_size" validate:"gte=0,lte=10000"`
	ExternalMX bool   `json:"external_mx"`
}

type sweepScopeRequest struct {
	Scope string `json:"scope"`
}

// StartSweep begins or resumes a sweep. Starting an already-running scope
// is a no-op returning its current status.
func (h *Handlers) StartSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepStartRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	st, err := h.sweeps.Start(r.Context(), req.Scope, sweep.StartOptions{
		Resume:     req.Resume,
		BatchSize:  req.BatchSize,
		ExternalMX: req.ExternalMX,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// PauseSweep keeps the cursor for a later resume.
func (h *Handlers) PauseSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepScopeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	st, err := h.sweeps.Pause(r.Context(), req.Scope)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// StopSweep terminates the sweep and records its history line.
func (h *Handlers) StopSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepScopeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	st, err := h.sweeps.Stop(r.Context(), req.Scope)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// ProcessSweep advances one batch, for operators driving a sweep manually.
func (h *Handlers) ProcessSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepScopeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	st, err := h.sweeps.Process(r.Context(), req.Scope)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// GetSweepStatus reports the state of one scope (?scope=, default "all").
func (h *Handlers) GetSweepStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.sweeps.GetStatus(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// GetSweepHistory returns the recorded sweep summaries, newest first.
func (h *Handlers) GetSweepHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.sweeps.History(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"history": history})
}
