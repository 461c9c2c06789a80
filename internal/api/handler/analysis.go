package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcusj/safetrack/internal/api/request"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/core"
)

type Analysis struct {
	analyses  *core.AnalysisService
	enrich    *core.EnrichmentService
	incidents *core.IncidentService
}

func NewAnalysis(analyses *core.AnalysisService, enrich *core.EnrichmentService, incidents *core.IncidentService) *Analysis {
	return &Analysis{analyses: analyses, enrich: enrich, incidents: incidents}
}

func (h *Analysis) ListByIncident(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.incidents.GetByID(r.Context(), id, caller(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	analyses, err := h.analyses.ListByIncident(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, analyses)
}

// Reprocess retries every failed image of the incident. Manager only.
func (h *Analysis) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.enrich.ReprocessFailed(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]int{"reprocessed": count})
}

func (h *Analysis) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analyses.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}
