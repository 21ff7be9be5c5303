package refresh

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	svcerrors "github.com/resauth/token-service/internal/errors"
)

// Manager handles refresh token creation, validation, rotation, and
// revocation. Per-record state transitions are Active -> {Rotated, Revoked};
// no record ever re-enters Active.
type Manager struct {
	repo         Repo
	secretLength int
	nowFunc      func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithSecretLength sets the raw secret length in bytes (default 64).
func WithSecretLength(n int) ManagerOption {
	return func(m *Manager) {
		m.secretLength = n
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:         repo,
		secretLength: 64,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// HashSecret returns the hex-encoded SHA-256 digest of a raw secret. This is
// the only form in which secrets touch the store.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (m *Manager) newSecret() (raw, hash string, err error) {
	buf := make([]byte, m.secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	raw = base64.StdEncoding.EncodeToString(buf)
	return raw, HashSecret(raw), nil
}

// Create generates a new refresh token for email, persists its record, and
// returns the raw secret. Concurrent creates for the same identity are
// independent: multiple live sessions per identity are allowed.
func (m *Manager) Create(ctx context.Context, email string, ttl time.Duration, prov Provenance) (string, error) {
	if email == "" {
		return "", errors.Wrap(svcerrors.ErrMissingInput, "refresh token requires an identity")
	}

	raw, hash, err := m.newSecret()
	if err != nil {
		return "", err
	}

	now := m.nowFunc()
	rec := &Record{
		ID:          uuid.New().String(),
		TokenHash:   hash,
		Email:       email,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		RemoteAddr:  prov.RemoteAddr,
		UserAgent:   prov.UserAgent,
		ClientClass: prov.ClientClass,
	}

	if err := m.repo.Insert(ctx, rec); err != nil {
		return "", errors.Wrap(err, "failed to store refresh token")
	}
	return raw, nil
}

// Lookup hashes the raw secret and fetches the matching record. Returns
// ErrNotFound when no record matches.
func (m *Manager) Lookup(ctx context.Context, raw string) (*Record, error) {
	if raw == "" {
		return nil, errors.Wrap(svcerrors.ErrMissingInput, "empty refresh token")
	}
	return m.repo.GetByHash(ctx, HashSecret(raw))
}

// IsUsable reports whether rec may be exchanged at time now.
func (m *Manager) IsUsable(rec *Record, now time.Time) bool {
	return rec.Usable(now)
}

// Rotate exchanges a still-usable record for a fresh secret. The successor
// record is durably written before the predecessor is marked revoked, so a
// crash mid-rotation leaves the old token usable rather than orphaning the
// session. A concurrent rotation of the same record loses the conditional
// revoke and fails with ErrInvalidToken; its freshly inserted successor is
// revoked again on the way out.
func (m *Manager) Rotate(ctx context.Context, rec *Record, ttl time.Duration) (string, error) {
	now := m.nowFunc()
	if !rec.Usable(now) {
		return "", errors.Wrap(svcerrors.ErrInvalidToken, "refresh token not usable")
	}

	raw, hash, err := m.newSecret()
	if err != nil {
		return "", err
	}

	successor := &Record{
		ID:          uuid.New().String(),
		TokenHash:   hash,
		Email:       rec.Email,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		RemoteAddr:  rec.RemoteAddr,
		UserAgent:   rec.UserAgent,
		ClientClass: rec.ClientClass,
	}

	if err := m.repo.Insert(ctx, successor); err != nil {
		return "", errors.Wrap(err, "failed to store rotated refresh token")
	}

	if err := m.repo.MarkRevoked(ctx, rec.ID, now, ReasonRotated, hash); err != nil {
		if svcerrors.Is(err, svcerrors.ErrInvalidToken) {
			// Lost the race against a concurrent rotation or logout. The
			// successor must not stay live.
			_ = m.repo.MarkRevoked(ctx, successor.ID, m.nowFunc(), ReasonConflict, "")
			return "", errors.Wrap(svcerrors.ErrInvalidToken, "refresh token already rotated or revoked")
		}
		return "", errors.Wrap(err, "failed to revoke rotated refresh token")
	}

	return raw, nil
}

// Revoke marks rec revoked with the given reason. Revoking an already
// revoked record is a no-op, not an error; the first recorded reason wins.
func (m *Manager) Revoke(ctx context.Context, rec *Record, reason string) error {
	if rec == nil || rec.Revoked || rec.RevokedAt != nil {
		return nil
	}
	if err := m.repo.MarkRevoked(ctx, rec.ID, m.nowFunc(), reason, ""); err != nil {
		if svcerrors.Is(err, svcerrors.ErrInvalidToken) {
			return nil // already revoked elsewhere
		}
		return errors.Wrap(err, "failed to revoke refresh token")
	}
	return nil
}

// PurgeExpired deletes every record that is expired or revoked. Only the
// background sweeper calls this.
func (m *Manager) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.repo.DeleteExpired(ctx, now)
}
