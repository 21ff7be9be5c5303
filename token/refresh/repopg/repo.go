// Package refreshrepopg provides the PostgreSQL-backed refresh.Repo used in
// production deployments.
package refreshrepopg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/resauth/token-service/internal/dbx"
	svcerrors "github.com/resauth/token-service/internal/errors"
	"github.com/resauth/token-service/token/refresh"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ refresh.Repo = (*Repo)(nil)

// Repo implements refresh.Repo over dbx.DBTX (satisfied by *sql.DB or *sql.Tx).
type Repo struct {
	db dbx.DBTX
}

// New constructs a repository bound to the given DBTX.
func New(db dbx.DBTX) *Repo {
	return &Repo{db: db}
}

// Open connects to Postgres via the pgx stdlib driver and applies the
// embedded schema migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations sets up goose with the embedded migrations and runs them.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (r *Repo) Insert(ctx context.Context, rec *refresh.Record) error {
	query := `
		INSERT INTO refresh_tokens
			(id, token_hash, email, created_at, expires_at, is_revoked, revoked_at,
			 revoke_reason, replaced_by_hash, remote_addr, user_agent, client_class)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.TokenHash, rec.Email, rec.CreatedAt, rec.ExpiresAt,
		rec.Revoked, rec.RevokedAt, nullable(rec.RevokeReason),
		nullable(rec.ReplacedByHash), rec.RemoteAddr, rec.UserAgent, rec.ClientClass)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Repo) GetByHash(ctx context.Context, hash string) (*refresh.Record, error) {
	query := `
		SELECT id, token_hash, email, created_at, expires_at, is_revoked, revoked_at,
		       revoke_reason, replaced_by_hash, remote_addr, user_agent, client_class
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	rec := &refresh.Record{}
	var revokedAt sql.NullTime
	var reason, replacedBy sql.NullString
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&rec.ID, &rec.TokenHash, &rec.Email, &rec.CreatedAt, &rec.ExpiresAt,
		&rec.Revoked, &revokedAt, &reason, &replacedBy,
		&rec.RemoteAddr, &rec.UserAgent, &rec.ClientClass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, svcerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		rec.RevokedAt = &t
	}
	rec.RevokeReason = reason.String
	rec.ReplacedByHash = replacedBy.String
	return rec, nil
}

// MarkRevoked is conditioned on the record still being active. Zero rows
// affected means the record was concurrently revoked or deleted; that is
// reported as ErrInvalidToken so a lost rotation race never looks like
// success.
func (r *Repo) MarkRevoked(ctx context.Context, id string, revokedAt time.Time, reason, replacedByHash string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2, revoke_reason = $3, replaced_by_hash = $4
		WHERE id = $1 AND is_revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, revokedAt, reason, nullable(replacedByHash))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return svcerrors.ErrInvalidToken
	}
	return nil
}

func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1 OR is_revoked = TRUE
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
