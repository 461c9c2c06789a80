package handler

import (
	"errors"
	"net/http"

	mw "github.com/marcusj/safetrack/internal/api/middleware"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/core"
	"github.com/marcusj/safetrack/internal/llm"
	"github.com/marcusj/safetrack/internal/model"
)

// writeServiceError maps the service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrAccessDenied):
		response.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrConflict):
		response.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalid):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrRateLimited):
		response.WriteError(w, http.StatusTooManyRequests, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// caller returns the authenticated user the services authorize against.
func caller(r *http.Request) *model.User {
	if id := mw.GetIdentity(r.Context()); id != nil {
		return id.User()
	}
	return nil
}
