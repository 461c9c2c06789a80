package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcusj/safetrack/internal/api/request"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/core"
	"github.com/marcusj/safetrack/internal/jobs"
	"github.com/marcusj/safetrack/internal/model"
)

type Rca struct {
	flow      *core.RcaWorkflowService
	reports   *core.ReportService
	incidents *core.IncidentService
	enqueuer  core.Enqueuer
}

func NewRca(flow *core.RcaWorkflowService, reports *core.ReportService, incidents *core.IncidentService, enqueuer core.Enqueuer) *Rca {
	return &Rca{flow: flow, reports: reports, incidents: incidents, enqueuer: enqueuer}
}

// Generate kicks off suggestion generation in the background and returns 202.
// force=true replaces an existing suggestion.
func (h *Rca) Generate(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The ownership gate also confirms the incident exists before queueing.
	if _, err := h.incidents.GetByID(r.Context(), id, caller(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	ok := h.enqueuer.Enqueue(jobs.Job{
		Name: "generate-rca",
		Run: func(ctx context.Context) error {
			_, err := h.flow.Generate(ctx, id, force)
			return err
		},
	})
	if !ok {
		response.WriteError(w, http.StatusServiceUnavailable, "job queue full, try again later")
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"incident_id": id,
		"status":      "generation queued",
	})
}

func (h *Rca) GetSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sg, err := h.flow.GetSuggestion(r.Context(), id, caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sg)
}

func (h *Rca) Review(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.flow.MarkReviewed)
}

func (h *Rca) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.flow.MarkApproved)
}

func (h *Rca) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, *model.User) (*model.RcaAiSuggestion, error)) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sg, err := fn(r.Context(), id, caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sg)
}

// Finalize turns the manager's final wording into the incident's report.
func (h *Rca) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.FinalizeRca
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.flow.Finalize(r.Context(), id, caller(r),
		req.FiveWhys, req.CorrectiveAction, req.PreventiveAction)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, report)
}

// GetReport returns the finalized report for an incident.
func (h *Rca) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.incidents.GetByID(r.Context(), id, caller(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	report, err := h.reports.GetByIncident(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, report)
}

// Retry re-runs generation for a failed suggestion. Manager only.
func (h *Rca) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok := h.enqueuer.Enqueue(jobs.Job{
		Name: "retry-rca",
		Run: func(ctx context.Context) error {
			_, err := h.flow.Retry(ctx, id)
			return err
		},
	})
	if !ok {
		response.WriteError(w, http.StatusServiceUnavailable, "job queue full, try again later")
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"incident_id": id,
		"status":      "retry queued",
	})
}

func (h *Rca) PendingReview(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)
	suggestions, err := h.flow.PendingReview(r.Context(), p.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, suggestions)
}

func (h *Rca) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.flow.Statistics(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}

func (h *Rca) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.flow.Health(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	response.WriteJSON(w, status, health)
}
