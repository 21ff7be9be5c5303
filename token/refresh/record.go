// Package refresh implements creation, lookup, rotation, and revocation of
// long-lived refresh tokens. Clients hold an opaque random secret; the store
// keeps only its hash. Every use of a token rotates it, revoking the
// predecessor and linking it to its successor.
package refresh

import "time"

// Revocation reasons written to the store.
const (
	ReasonRotated  = "rotated"
	ReasonLogout   = "logout"
	ReasonConflict = "rotation-conflict"
)

// Record is the server-side state of one refresh token. The raw secret
// handed to the client is never stored; TokenHash is its SHA-256 digest.
type Record struct {
	ID             string
	TokenHash      string
	Email          string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Revoked        bool
	RevokedAt      *time.Time
	RevokeReason   string
	ReplacedByHash string
	RemoteAddr     string
	UserAgent      string
	ClientClass    string
}

// Provenance carries request metadata recorded with a new token. It is
// audit data only, never used for authorization.
type Provenance struct {
	RemoteAddr  string
	UserAgent   string
	ClientClass string
}

// Usable reports whether the record may still be exchanged: not revoked and
// not expired. A set Revoked flag is sufficient to reject even if RevokedAt
// is momentarily unset.
func (r *Record) Usable(now time.Time) bool {
	if r == nil {
		return false
	}
	if r.Revoked || r.RevokedAt != nil {
		return false
	}
	return now.Before(r.ExpiresAt)
}
