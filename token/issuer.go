// Package token implements access token issuance: short-lived RS256-signed
// JWTs minted from a verified claim set, with a best-effort cache to avoid
// re-signing for the same identity within the token lifetime.
package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/resauth/token-service/cache"
	svcerrors "github.com/resauth/token-service/internal/errors"
	"github.com/resauth/token-service/token/keys"
)

// SubjectClaim is the claim that identifies the subject of an access token.
const SubjectClaim = "email"

const cacheKeyPrefix = "access_token_"

// Issuer turns a verified claim set into a signed, time-bounded token.
type Issuer struct {
	signer  keys.Signer
	cache   cache.Cache
	issuer  string
	nowFunc func() time.Time
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// NewIssuer creates an Issuer bound to the given signer and cache. The cache
// may be cache.Noop; issuance never depends on it for correctness.
func NewIssuer(signer keys.Signer, c cache.Cache, issuer string, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:  signer,
		cache:   c,
		issuer:  issuer,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// IssueAccessToken returns a signed JWT embedding claims, the issuer
// identifier, and an absolute expiry of now+ttl. A cached token for the same
// subject is returned unchanged; cache failures are treated as a miss.
func (i *Issuer) IssueAccessToken(ctx context.Context, claims jwt.MapClaims, ttl time.Duration) (string, error) {
	if len(claims) == 0 {
		return "", errors.Wrap(svcerrors.ErrMissingInput, "empty claim set")
	}
	subject, _ := claims[SubjectClaim].(string)
	if subject == "" {
		return "", errors.Wrap(svcerrors.ErrMissingInput, "claim set has no subject identity")
	}
	if ttl <= 0 {
		return "", errors.Wrap(svcerrors.ErrMissingInput, "non-positive token ttl")
	}

	cacheKey := cacheKeyPrefix + subject

	cached, found, err := i.cache.Get(ctx, cacheKey)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("access token cache unavailable, issuing fresh token")
	} else if found {
		return cached, nil
	}

	now := i.nowFunc()
	tokenClaims := jwt.MapClaims{}
	for k, v := range claims {
		tokenClaims[k] = v
	}
	// Registered claims always win over caller-supplied ones.
	tokenClaims["iss"] = i.issuer
	tokenClaims["iat"] = now.Unix()
	tokenClaims["exp"] = now.Add(ttl).Unix()
	tokenClaims["jti"] = uuid.New().String()

	signed, err := i.signer.Sign(tokenClaims)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}

	if err := i.cache.Set(ctx, cacheKey, signed, ttl); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to cache access token")
	}

	return signed, nil
}
