package config

// UpstreamConfig describes the external identity provider used for the
// federated login code exchange.
type UpstreamConfig interface {
	GetOIDCIssuerURL() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
}

type Upstream struct{}

var _ UpstreamConfig = Upstream{}

func (Upstream) GetOIDCIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "")
}

func (Upstream) GetOIDCClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Upstream) GetOIDCClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Upstream) GetOIDCRedirectURL() string {
	return GetEnv("OIDC_REDIRECT_URL", "")
}
