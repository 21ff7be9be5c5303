package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/resauth/token-service/broadcast"
	"github.com/resauth/token-service/cache"
	"github.com/resauth/token-service/identity"
	"github.com/resauth/token-service/identity/providerfake"
	"github.com/resauth/token-service/internal/config"
	"github.com/resauth/token-service/server"
	"github.com/resauth/token-service/token"
	"github.com/resauth/token-service/token/keys"
	"github.com/resauth/token-service/token/refresh"
	refreshrepofake "github.com/resauth/token-service/token/refresh/repofake"
)

const (
	testCode  = "auth-code-1"
	testEmail = "alice@example.com"
)

type publishedEvent struct {
	group broadcast.Group
	event broadcast.Event
}

// recordingBroadcaster captures published events for assertions. Logout
// publishes asynchronously, so delivery is observed through a channel.
type recordingBroadcaster struct {
	events chan publishedEvent
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{events: make(chan publishedEvent, 8)}
}

func (rb *recordingBroadcaster) Publish(ctx context.Context, group broadcast.Group, event broadcast.Event) error {
	rb.events <- publishedEvent{group: group, event: event}
	return nil
}

type testFixture struct {
	server      *server.Server
	signer      *keys.KeyPairSigner
	broadcaster *recordingBroadcaster
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	return setupTestFixtureWithRepo(t, refreshrepofake.NewFakeRefreshRepo())
}

func setupTestFixtureWithRepo(t *testing.T, repo refresh.Repo) *testFixture {
	t.Helper()

	kp, err := keys.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(kp)

	cfg := config.New()
	manager := refresh.NewManager(repo)
	issuer := token.NewIssuer(signer, cache.Noop{}, cfg.GetBaseURL())

	provider := providerfake.NewFakeProvider()
	provider.Assertions[testCode] = identity.Assertion{Email: testEmail, Name: "Alice"}

	broadcaster := newRecordingBroadcaster()

	return &testFixture{
		server:      server.New(cfg, issuer, manager, provider, broadcaster, signer),
		signer:      signer,
		broadcaster: broadcaster,
	}
}

func (f *testFixture) do(t *testing.T, method, target, cookie, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: cookie})
	}

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatal("no refresh_token cookie in response")
	return nil
}

func TestWebLoginRefreshLogoutScenario(t *testing.T) {
	f := setupTestFixture(t)

	// Login: access token + refresh cookie.
	w := f.do(t, http.MethodGet, "/signin-oidc?code="+testCode, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "postMessage")
	require.Contains(t, w.Body.String(), "access_token")

	login := refreshCookie(t, w)
	require.True(t, login.HttpOnly)
	require.NotEmpty(t, login.Value)
	r1 := login.Value

	// Refresh with R1: new pair, R2 != R1.
	w = f.do(t, http.MethodPost, "/refresh", r1, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 3600, resp.ExpiresIn)

	parsed, err := jwt.Parse(resp.AccessToken, f.signer.GetVerificationKey)
	require.NoError(t, err)
	require.Equal(t, testEmail, parsed.Claims.(jwt.MapClaims)["email"])

	r2 := refreshCookie(t, w).Value
	require.NotEqual(t, r1, r2)

	// Reusing R1 is rejected.
	w = f.do(t, http.MethodPost, "/refresh", r1, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Logout with R2 succeeds and clears the cookie.
	w = f.do(t, http.MethodPost, "/logout", r2, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Less(t, refreshCookie(t, w).MaxAge, 0)

	// The (identity, web) group was notified.
	select {
	case published := <-f.broadcaster.events:
		require.Equal(t, broadcast.Group{Email: testEmail, ClientClass: "web"}, published.group)
		require.NotEmpty(t, published.event.Reason)
	case <-time.After(time.Second):
		t.Fatal("logout broadcast not published")
	}

	// R2 is no longer usable.
	w = f.do(t, http.MethodPost, "/refresh", r2, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebLoginRejections(t *testing.T) {
	f := setupTestFixture(t)

	// Missing code.
	w := f.do(t, http.MethodGet, "/signin-oidc", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown code: upstream rejection surfaces as a login failure.
	w = f.do(t, http.MethodGet, "/signin-oidc?code=bogus", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodPost, "/refresh", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshWithUnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodPost, "/refresh", "never-issued", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutWithUnknownTokenStillSucceeds(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodPost, "/logout", "never-issued", "")
	require.Equal(t, http.StatusOK, w.Code)
}

// flakyRepo simulates a store outage on lookups while delegating
// everything else to the wrapped repo.
type flakyRepo struct {
	refresh.Repo
	failLookups bool
}

func (f *flakyRepo) GetByHash(ctx context.Context, hash string) (*refresh.Record, error) {
	if f.failLookups {
		return nil, errors.New("store unavailable")
	}
	return f.Repo.GetByHash(ctx, hash)
}

func TestLogoutDuringStoreOutageIsNotSuccess(t *testing.T) {
	repo := &flakyRepo{Repo: refreshrepofake.NewFakeRefreshRepo()}
	f := setupTestFixtureWithRepo(t, repo)

	w := f.do(t, http.MethodGet, "/signin-oidc?code="+testCode, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	r1 := refreshCookie(t, w).Value

	// While the store is down the token cannot be revoked, so logout must
	// not claim success.
	repo.failLookups = true
	w = f.do(t, http.MethodPost, "/logout", r1, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// The token was never revoked: once the store is healthy again it is
	// still honored, proving the failed logout reported honestly.
	repo.failLookups = false
	w = f.do(t, http.MethodPost, "/refresh", r1, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMobileFlow(t *testing.T) {
	f := setupTestFixture(t)

	// Mobile login returns the refresh secret in the body.
	w := f.do(t, http.MethodPost, "/mobile/signin-oidc?code="+testCode, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)
	require.Equal(t, 3600, login.ExpiresIn)

	// Refresh rotates the secret.
	w = f.do(t, http.MethodPost, "/mobile/refresh", "", `{"refresh_token":"`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var refreshed struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// Logout broadcasts to the mobile group, not web.
	w = f.do(t, http.MethodPost, "/mobile/logout", "", `{"refresh_token":"`+refreshed.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case published := <-f.broadcaster.events:
		require.Equal(t, "mobile", published.group.ClientClass)
	case <-time.After(time.Second):
		t.Fatal("logout broadcast not published")
	}

	// Missing body token.
	w = f.do(t, http.MethodPost, "/mobile/refresh", "", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicKeyHandler(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodGet, "/publickey", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var jwk keys.JWK
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jwk))
	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "sig", jwk.Use)
	require.NotEmpty(t, jwk.N)
	require.NotEmpty(t, jwk.E)
	require.NotEmpty(t, jwk.Kid)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Setenv("API_KEY", "sekrit")
	f := setupTestFixture(t)

	// Missing key.
	w := f.do(t, http.MethodGet, "/publickey", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong key.
	req := httptest.NewRequest(http.MethodGet, "/publickey", nil)
	req.Header.Set("XApiKey", "wrong")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct key.
	req = httptest.NewRequest(http.MethodGet, "/publickey", nil)
	req.Header.Set("XApiKey", "sekrit")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
