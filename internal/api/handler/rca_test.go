package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRcaHandler() *Rca {
	return NewRca(nil, nil, nil, nil)
}

func TestRcaFinalize_MissingFields(t *testing.T) {
	h := newRcaHandler()
	rec := httptest.NewRecorder()
	r := withManager(newRequest(http.MethodPost, "/api/incidents/inc-1/rca/finalize", map[string]any{
		"five_whys": "only one section",
	}))
	r = withChiURLParam(r, "id", "inc-1")

	h.Finalize(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestRcaFinalize_MissingID(t *testing.T) {
	h := newRcaHandler()
	rec := httptest.NewRecorder()
	r := withManager(newRequest(http.MethodPost, "/api/incidents//rca/finalize", nil))
	r = withChiURLParam(r, "id", "")

	h.Finalize(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRcaGetSuggestion_MissingID(t *testing.T) {
	h := newRcaHandler()
	rec := httptest.NewRecorder()
	r := withWorker(newRequest(http.MethodGet, "/api/incidents//rca/suggestion", nil))
	r = withChiURLParam(r, "id", "")

	h.GetSuggestion(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
