package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcusj/safetrack/internal/api/request"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/core"
)

type Transcription struct {
	transcriptions *core.TranscriptionService
	incidents      *core.IncidentService
}

func NewTranscription(transcriptions *core.TranscriptionService, incidents *core.IncidentService) *Transcription {
	return &Transcription{transcriptions: transcriptions, incidents: incidents}
}

func (h *Transcription) ListByIncident(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.incidents.GetByID(r.Context(), id, caller(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	transcriptions, err := h.transcriptions.ListByIncident(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, transcriptions)
}
