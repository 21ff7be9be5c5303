package refresh

import (
	"context"
	"time"
)

// Repo manages server-side storage of refresh token records, keyed by the
// hash of the opaque secret sent to clients.
//
// MarkRevoked must be conditional on the record still being active: when the
// record was already revoked (a lost rotation race, or a repeated logout)
// implementations return ErrInvalidToken from internal/errors rather than
// overwriting the earlier revocation.
type Repo interface {
	Insert(ctx context.Context, rec *Record) error
	GetByHash(ctx context.Context, hash string) (*Record, error)
	MarkRevoked(ctx context.Context, id string, revokedAt time.Time, reason, replacedByHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
