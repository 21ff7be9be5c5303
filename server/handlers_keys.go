package server

import (
	"net/http"
)

// PublicKeyHandler serves the public half of the signing key as a JWK so
// third parties can validate access tokens offline.
func (s *Server) PublicKeyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.signer.GetJWKS()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, jwks.Keys[0])
	}
}
