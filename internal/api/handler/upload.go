package handler

import (
	"context"
	"net/http"

	"github.com/marcusj/safetrack/internal/api/request"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/blob"
	"github.com/marcusj/safetrack/internal/metrics"
)

// UploadSigner issues presigned upload tickets. Satisfied by *blob.Store.
type UploadSigner interface {
	PresignedUploadURL(ctx context.Context, kind, ext, ownerID string) (*blob.UploadTicket, error)
	PresignedDownloadURL(ctx context.Context, objectURL string) (string, error)
}

type Upload struct {
	signer UploadSigner
}

func NewUpload(signer UploadSigner) *Upload {
	return &Upload{signer: signer}
}

// Presign hands the client a presigned PUT URL; media bytes never pass
// through the API server.
func (h *Upload) Presign(w http.ResponseWriter, r *http.Request) {
	var req request.PresignUpload
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.signer.PresignedUploadURL(r.Context(), req.Kind, req.Extension, caller(r).ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.FilesUploaded.WithLabelValues(req.Kind).Inc()
	response.WriteJSON(w, http.StatusOK, ticket)
}

// Download resolves a stored object URL to a short-lived GET URL.
func (h *Upload) Download(w http.ResponseWriter, r *http.Request) {
	objectURL := r.URL.Query().Get("url")
	if objectURL == "" {
		response.WriteError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	signed, err := h.signer.PresignedDownloadURL(r.Context(), objectURL)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"url": signed})
}
