package handler

import (
	"errors"
	"net/http"
	"time"

	mw "github.com/marcusj/safetrack/internal/api/middleware"
	"github.com/marcusj/safetrack/internal/api/request"
	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/core"
	"github.com/marcusj/safetrack/internal/metrics"
	"github.com/marcusj/safetrack/internal/model"
)

type Auth struct {
	users     *core.UserService
	jwtSecret []byte
	jwtExpiry time.Duration
}

func NewAuth(users *core.UserService, jwtSecret []byte, jwtExpiry time.Duration) *Auth {
	return &Auth{users: users, jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req request.Register
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := mw.IssueToken(h.jwtSecret, h.jwtExpiry, user)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, core.ErrAccessDenied) {
			response.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}

	token, err := mw.IssueToken(h.jwtSecret, h.jwtExpiry, user)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
