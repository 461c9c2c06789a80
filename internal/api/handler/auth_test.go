package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newAuthHandler() *Auth {
	return NewAuth(nil, []byte("test-secret"), time.Hour)
}

// --- Register ---

func TestAuthRegister_InvalidJSON(t *testing.T) {
	h := newAuthHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/api/auth/register", "{bad json")

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestAuthRegister_MissingFields(t *testing.T) {
	h := newAuthHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api/auth/register", map[string]any{})

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestAuthRegister_ShortPassword(t *testing.T) {
	h := newAuthHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api/auth/register", map[string]any{
		"email":     "anna@site.test",
		"password":  "short",
		"full_name": "Anna Berg",
	})

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRegister_UnknownRole(t *testing.T) {
	h := newAuthHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api/auth/register", map[string]any{
		"email":     "anna@site.test",
		"password":  "hunter22hunter22",
		"full_name": "Anna Berg",
		"role":      "admin",
	})

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Login ---

func TestAuthLogin_MissingEmail(t *testing.T) {
	h := newAuthHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api/auth/login", map[string]any{"password": "hunter22"})

	h.Login(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
