package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcusj/safetrack/internal/api/request"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/core"
	"github.com/marcusj/safetrack/internal/model"
)

type Incident struct {
	svc *core.IncidentService
}

func NewIncident(svc *core.IncidentService) *Incident {
	return &Incident{svc: svc}
}

func (h *Incident) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateIncident
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc := &model.Incident{
		ReportedBy:          caller(r).ID,
		Title:               req.Title,
		Description:         req.Description,
		Severity:            req.Severity,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		LocationDescription: req.LocationDescription,
		ImageURLs:           req.ImageURLs,
		AudioURLs:           req.AudioURLs,
	}

	if err := h.svc.Create(r.Context(), inc); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, inc)
}

func (h *Incident) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)
	filters := core.IncidentFilters{
		Status:     r.URL.Query().Get("status"),
		Severity:   r.URL.Query().Get("severity"),
		ReportedBy: r.URL.Query().Get("reported_by"),
	}

	incidents, hasMore, err := h.svc.List(r.Context(), caller(r), filters, p.Limit, p.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	nextCursor := ""
	if hasMore && len(incidents) > 0 {
		nextCursor = incidents[len(incidents)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, incidents, nextCursor, hasMore)
}

func (h *Incident) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc, err := h.svc.GetByID(r.Context(), id, caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, inc)
}

func (h *Incident) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateIncidentStatus
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), id, req.Status, caller(r), req.Reason); err != nil {
		writeServiceError(w, err)
		return
	}

	inc, err := h.svc.GetByID(r.Context(), id, caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inc)
}

func (h *Incident) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.AssignIncident
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Assign(r.Context(), id, req.AssigneeID, caller(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	inc, err := h.svc.GetByID(r.Context(), id, caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inc)
}

func (h *Incident) History(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Access check rides on GetByID so workers cannot read other reporters'
	// incident histories.
	if _, err := h.svc.GetByID(r.Context(), id, caller(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	history, err := h.svc.ListStatusHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, history)
}
