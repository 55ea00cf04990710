package api

import (
	"net/http"
	"strconv"

	"github.com/safegreen/outreach-engine/internal/domain"
	"github.com/safegreen/outreach-engine/internal/pkg/httputil"
	"github.com/safegreen/outreach-engine/internal/service/suppression"
)

type addSuppressionRequest struct {
	Address string `json:"address" validate:"required"`
	Reason  string `json:"reason" validate:"omitempty,oneof=hard_bounce soft_bounce manual_import opt_out"`
	Detail  string `json:"detail"`
}

type importSuppressionsRequest struct {
	Content string `json:"content" validate:"required"`
	Reason  string `json:"reason" validate:"omitempty,oneof=hard_bounce soft_bounce manual_import opt_out"`
}

type unsuppressRequest struct {
	ID string `json:"id" validate:"required"`
}

// SearchSuppressions lists entries with search, reason and pagination
// filters from the query string.
func (h *Handlers) SearchSuppressions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, total, err := h.suppressions.Search(r.Context(), suppression.ListFilter{
		Search:     q.Get("search"),
		Reason:     q.Get("reason"),
		ActiveOnly: q.Get("active") != "false",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"entries": entries, "total": total})
}

// AddSuppression suppresses a single address. Idempotent.
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req addSuppressionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	reason := domain.SuppressionReason(req.Reason)
	if reason == "" {
		reason = domain.ReasonOptOut
	}
	if err := h.suppressions.Suppress(r.Context(), req.Address, reason, req.Detail); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"address": req.Address, "status": "suppressed"})
}

// ImportSuppressions bulk-ingests a delimited blob of addresses and
// reports every malformed token back.
func (h *Handlers) ImportSuppressions(w http.ResponseWriter, r *http.Request) {
	var req importSuppressionsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	res, err := h.suppressions.Import(r.Context(), req.Content, domain.SuppressionReason(req.Reason))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// Unsuppress reactivates a false positive by entry id.
func (h *Handlers) Unsuppress(w http.ResponseWriter, r *http.Request) {
	var req unsuppressRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.suppressions.Unsuppress(r.Context(), req.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"id": req.ID, "status": "unsuppressed"})
}

// ExportSuppressions streams the full list as CSV.
func (h *Handlers) ExportSuppressions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="suppressions.csv"`)
	if err := h.suppressions.ExportCSV(r.Context(), w); err != nil {
		httputil.InternalError(w, err)
	}
}
