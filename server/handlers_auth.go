package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/resauth/token-service/broadcast"
	svcerrors "github.com/resauth/token-service/internal/errors"
	"github.com/resauth/token-service/token/refresh"
)

const broadcastTimeout = 5 * time.Second

// SigninOIDCHandler completes the federated login for browser clients: the
// identity provider's authorization code is exchanged for an assertion, an
// access token is minted, and the refresh secret is delivered in an HttpOnly
// cookie. The response body is a small page that hands the access token to
// the opener window via postMessage.
func (s *Server) SigninOIDCHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "code is missing")
			return
		}

		accessToken, refreshRaw, err := s.login(r, code, ClientClassWeb)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		s.setRefreshCookie(w, refreshRaw)

		payload, _ := json.Marshal(tokenResponse{
			AccessToken: accessToken,
			ExpiresIn:   int(s.config.GetAccessTokenTTL().Seconds()),
		})

		w.Header().Set("Content-Type", contentTypeHTML)
		fmt.Fprintf(w, `<html><body>
<script>
  window.opener.postMessage(%s, '*');
  window.close();
</script>
</body></html>`, payload)
	}
}

// RefreshHandler exchanges a still-valid refresh cookie for a rotated
// refresh secret and a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshTokenCookie)
		if err != nil || cookie.Value == "" {
			log.Warn().Msg("refresh request missing cookie")
			writeError(w, http.StatusBadRequest, "missing refresh_token cookie")
			return
		}

		accessToken, newRaw, err := s.rotate(r.Context(), cookie.Value)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		s.setRefreshCookie(w, newRaw)
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: accessToken,
			ExpiresIn:   int(s.config.GetAccessTokenTTL().Seconds()),
		})
	}
}

// LogoutHandler revokes the refresh token, notifies the identity's live web
// connections, and clears the cookie. A missing or unknown token still
// clears the cookie: logout never reports partial success.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshTokenCookie)
		if err != nil || cookie.Value == "" {
			log.Warn().Msg("logout request missing cookie")
			writeError(w, http.StatusBadRequest, "missing refresh_token cookie")
			return
		}

		if err := s.logout(r.Context(), cookie.Value, ClientClassWeb); err != nil {
			writeServiceError(w, err)
			return
		}

		s.clearRefreshCookie(w)
		writeJSON(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
	}
}

// login runs the shared login path: code exchange, access token issuance,
// refresh token creation.
func (s *Server) login(r *http.Request, code, clientClass string) (accessToken, refreshRaw string, err error) {
	ctx := r.Context()

	assertion, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", "", err
	}

	claims := jwt.MapClaims{
		"email": assertion.Email,
		"name":  assertion.Name,
	}
	accessToken, err = s.issuer.IssueAccessToken(ctx, claims, s.config.GetAccessTokenTTL())
	if err != nil {
		return "", "", err
	}

	refreshRaw, err = s.refresh.Create(ctx, assertion.Email, s.config.GetRefreshTokenTTL(), refresh.Provenance{
		RemoteAddr:  remoteAddr(r),
		UserAgent:   r.UserAgent(),
		ClientClass: clientClass,
	})
	if err != nil {
		return "", "", err
	}

	log.Info().Str("email", assertion.Email).Str("client_class", clientClass).Msg("user logged in")
	return accessToken, refreshRaw, nil
}

// rotate runs the shared refresh path: lookup, rotation, new access token.
func (s *Server) rotate(ctx context.Context, raw string) (accessToken, newRaw string, err error) {
	rec, err := s.refresh.Lookup(ctx, raw)
	if err != nil {
		log.Warn().Msg("refresh token lookup failed")
		return "", "", err
	}

	newRaw, err = s.refresh.Rotate(ctx, rec, s.config.GetRefreshTokenTTL())
	if err != nil {
		log.Warn().Str("email", rec.Email).Msg("refresh token rotation rejected")
		return "", "", err
	}

	claims := jwt.MapClaims{"email": rec.Email}
	accessToken, err = s.issuer.IssueAccessToken(ctx, claims, s.config.GetAccessTokenTTL())
	if err != nil {
		return "", "", err
	}

	log.Info().Str("email", rec.Email).Msg("user refreshed token")
	return accessToken, newRaw, nil
}

// logout revokes the token if it exists and broadcasts the revocation to the
// identity's connections for the given client class. The broadcast is
// fire-and-forget: the revoke is complete once the store update is durable.
func (s *Server) logout(ctx context.Context, raw, clientClass string) error {
	rec, err := s.refresh.Lookup(ctx, raw)
	if err != nil {
		// Unknown or already purged token: logout still succeeds. A store
		// failure does not, because the token would stay usable.
		if svcerrors.Is(err, svcerrors.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.refresh.Revoke(ctx, rec, refresh.ReasonLogout); err != nil {
		return err
	}

	group := broadcast.Group{Email: rec.Email, ClientClass: clientClass}
	go func() {
		bctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
		defer cancel()
		if err := s.broadcaster.Publish(bctx, group, broadcast.Event{Reason: "user requested logout"}); err != nil {
			log.Warn().Err(err).Str("email", rec.Email).Msg("logout broadcast failed")
		}
	}()

	log.Info().Str("email", rec.Email).Str("client_class", clientClass).Msg("user logged out")
	return nil
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    raw,
		Path:     "/",
		Domain:   s.config.GetCookieDomain(),
		Expires:  time.Now().Add(s.config.GetRefreshTokenTTL()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/",
		Domain:   s.config.GetCookieDomain(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
