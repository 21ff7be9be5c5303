package server

// Route paths
const (
	RouteSigninOIDC    = "/signin-oidc"
	RouteRefresh       = "/refresh"
	RouteLogout        = "/logout"
	RouteMobileSignin  = "/mobile/signin-oidc"
	RouteMobileRefresh = "/mobile/refresh"
	RouteMobileLogout  = "/mobile/logout"
	RoutePublicKey     = "/publickey"
)

const refreshTokenCookie = "refresh_token"

// Client classes used to scope logout broadcast groups.
const (
	ClientClassWeb    = "web"
	ClientClassMobile = "mobile"
)
