package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/resauth/token-service/broadcast"
	"github.com/resauth/token-service/identity"
	"github.com/resauth/token-service/internal/config"
	"github.com/resauth/token-service/token"
	"github.com/resauth/token-service/token/keys"
	"github.com/resauth/token-service/token/refresh"
)

// Server wires the token lifecycle components behind the HTTP surface:
// login (federated code exchange), refresh, logout, and the public key
// endpoint, for both browser and mobile clients.
type Server struct {
	env         string
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	issuer      *token.Issuer
	refresh     *refresh.Manager
	provider    identity.Provider
	broadcaster broadcast.Broadcaster
	signer      *keys.KeyPairSigner
}

func New(
	cfg config.Config,
	issuer *token.Issuer,
	refreshManager *refresh.Manager,
	provider identity.Provider,
	broadcaster broadcast.Broadcaster,
	signer *keys.KeyPairSigner,
) *Server {
	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		issuer:      issuer,
		refresh:     refreshManager,
		provider:    provider,
		broadcaster: broadcaster,
		signer:      signer,
	}
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	api := s.APIMiddleware()

	// Browser clients: refresh credential travels in an HttpOnly cookie.
	s.RegisterRouteFunc("GET "+RouteSigninOIDC, ChainMiddleware(s.SigninOIDCHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), api...))

	// Mobile clients: refresh credential travels in the request body.
	s.RegisterRouteFunc("POST "+RouteMobileSignin, ChainMiddleware(s.MobileSigninHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteMobileRefresh, ChainMiddleware(s.MobileRefreshHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteMobileLogout, ChainMiddleware(s.MobileLogoutHandler(), api...))

	s.RegisterRouteFunc("GET "+RoutePublicKey, ChainMiddleware(s.PublicKeyHandler(), api...))

	s.logRoutes()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered route")
	}
}
