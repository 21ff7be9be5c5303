package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
)

const apiKeyHeader = "XApiKey"

// ChainMiddleware applies middleware to a handler in declaration order.
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// APIMiddleware is the chain applied to every API route.
func (s *Server) APIMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.APIKeyMiddleware,
	}
}

// APIKeyMiddleware gates every inbound request on a shared API key in the
// XApiKey header. An empty configured key disables the gate (DEV only).
func (s *Server) APIKeyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configured := s.config.GetAPIKey()
		if configured == "" {
			next(w, r)
			return
		}

		supplied := r.Header.Get(apiKeyHeader)
		if supplied == "" {
			log.Warn().Str("path", r.URL.Path).Msg("missing API key")
			writeError(w, http.StatusUnauthorized, "API key missing")
			return
		}

		if subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) != 1 {
			log.Warn().Str("path", r.URL.Path).Msg("invalid API key")
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next(w, r)
	}
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Msg("request")
		next(w, r)
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next(w, r)
	}
}
