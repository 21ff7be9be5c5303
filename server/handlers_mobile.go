package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type mobileRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// MobileSigninHandler is the non-browser login: same code exchange as the
// web flow, but the refresh secret is returned in the response body instead
// of a cookie.
func (s *Server) MobileSigninHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "code is missing")
			return
		}

		accessToken, refreshRaw, err := s.login(r, code, ClientClassMobile)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshRaw,
			ExpiresIn:    int(s.config.GetAccessTokenTTL().Seconds()),
		})
	}
}

func (s *Server) MobileRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := mobileToken(w, r)
		if !ok {
			return
		}

		accessToken, newRaw, err := s.rotate(r.Context(), raw)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: newRaw,
			ExpiresIn:    int(s.config.GetAccessTokenTTL().Seconds()),
		})
	}
}

func (s *Server) MobileLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := mobileToken(w, r)
		if !ok {
			return
		}

		if err := s.logout(r.Context(), raw, ClientClassMobile); err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
	}
}

// mobileToken extracts the refresh token from the request body, writing the
// rejection itself when the body is absent or empty.
func mobileToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req mobileRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		log.Warn().Msg("mobile request missing refresh_token")
		writeError(w, http.StatusBadRequest, "missing refresh_token")
		return "", false
	}
	return req.RefreshToken, true
}
