package server

import (
	"encoding/json"
	"net/http"

	svcerrors "github.com/resauth/token-service/internal/errors"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// tokenResponse is the success payload for login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the error taxonomy to client responses. MissingInput,
// InvalidToken, and upstream identity failures are client-facing rejections;
// everything else is an internal error with no detail leaked.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case svcerrors.Is(err, svcerrors.ErrMissingInput):
		writeError(w, http.StatusBadRequest, "missing required input")
	case svcerrors.Is(err, svcerrors.ErrInvalidToken), svcerrors.Is(err, svcerrors.ErrNotFound):
		writeError(w, http.StatusBadRequest, "invalid or expired refresh token")
	case svcerrors.Is(err, svcerrors.ErrUpstreamIdentity):
		writeError(w, http.StatusBadRequest, "login rejected")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
