package refreshrepofake

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	svcerrors "github.com/resauth/token-service/internal/errors"
	"github.com/resauth/token-service/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshRepo)(nil)

// FakeRefreshRepo is an in-memory refresh.Repo with the same conditional
// revoke semantics as the Postgres implementation. Suitable for tests and
// single-process DEV runs.
type FakeRefreshRepo struct {
	records map[string]*refresh.Record // keyed by record ID
	lock    sync.RWMutex
}

func NewFakeRefreshRepo() *FakeRefreshRepo {
	return &FakeRefreshRepo{
		records: make(map[string]*refresh.Record),
	}
}

func (fr *FakeRefreshRepo) Insert(ctx context.Context, rec *refresh.Record) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	for _, existing := range fr.records {
		if existing.TokenHash == rec.TokenHash {
			return svcerrors.Wrapf(svcerrors.ErrInternal, "duplicate token hash")
		}
	}

	clone := *rec
	fr.records[rec.ID] = &clone
	return nil
}

func (fr *FakeRefreshRepo) GetByHash(ctx context.Context, hash string) (*refresh.Record, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	for _, rec := range fr.records {
		if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(hash)) == 1 {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, svcerrors.ErrNotFound
}

// MarkRevoked transitions an active record to revoked. It fails with
// ErrInvalidToken when the record is gone or already revoked, which is how
// concurrent rotations are serialized.
func (fr *FakeRefreshRepo) MarkRevoked(ctx context.Context, id string, revokedAt time.Time, reason, replacedByHash string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	rec, ok := fr.records[id]
	if !ok || rec.Revoked {
		return svcerrors.ErrInvalidToken
	}

	at := revokedAt
	rec.Revoked = true
	rec.RevokedAt = &at
	rec.RevokeReason = reason
	rec.ReplacedByHash = replacedByHash
	return nil
}

func (fr *FakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	var count int64
	for id, rec := range fr.records {
		if rec.ExpiresAt.Before(now) || rec.Revoked {
			delete(fr.records, id)
			count++
		}
	}
	return count, nil
}

// Len reports the number of stored records (test helper).
func (fr *FakeRefreshRepo) Len() int {
	fr.lock.RLock()
	defer fr.lock.RUnlock()
	return len(fr.records)
}
