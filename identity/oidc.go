package identity

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/resauth/token-service/internal/config"
	svcerrors "github.com/resauth/token-service/internal/errors"
)

// OIDCProvider implements Provider against any OpenID Connect issuer,
// using its discovery document for the token endpoint and JWKS.
type OIDCProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider discovers the upstream issuer's configuration and builds
// the code-exchange client.
func NewOIDCProvider(ctx context.Context, cfg config.UpstreamConfig) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.GetOIDCIssuerURL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover OIDC provider")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GetOIDCClientID(),
		ClientSecret: cfg.GetOIDCClientSecret(),
		RedirectURL:  cfg.GetOIDCRedirectURL(),
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &OIDCProvider{
		oauth:    oauthCfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.GetOIDCClientID()}),
	}, nil
}

// Exchange trades the authorization code for tokens, verifies the ID token,
// and extracts the identity assertion. Every failure mode maps to
// ErrUpstreamIdentity: callers cannot distinguish rejection from outage.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Assertion, error) {
	oauth2Token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(svcerrors.ErrUpstreamIdentity, "code exchange failed")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, errors.Wrap(svcerrors.ErrUpstreamIdentity, "no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(svcerrors.ErrUpstreamIdentity, "id_token verification failed")
	}

	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
		GivenName         string `json:"given_name"`
		FamilyName        string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(svcerrors.ErrUpstreamIdentity, "failed to extract claims")
	}

	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	if email == "" {
		return nil, errors.Wrap(svcerrors.ErrUpstreamIdentity, "assertion has no identity")
	}

	name := claims.Name
	if name == "" {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}
	if name == "" {
		name = email
	}

	return &Assertion{Email: email, Name: name}, nil
}
