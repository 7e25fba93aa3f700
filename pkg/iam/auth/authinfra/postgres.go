package authinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at, created_by_ip, user_agent,
	revoked_at, revoked_by_ip, replaced_by_token, reason`

// PostgresRefreshTokenRepository stores the refresh token ledger in refresh_tokens.
type PostgresRefreshTokenRepository struct {
	db dbx.Querier
}

func NewPostgresRefreshTokenRepository(db dbx.Querier) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db}
}

func (r *PostgresRefreshTokenRepository) Create(ctx context.Context, t *auth.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, expires_at, created_at, created_by_ip, user_agent
		) VALUES (
			:id, :user_id, :token_hash, :expires_at, :created_at, :created_by_ip, :user_agent
		)`

	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return errx.Wrap(err, "failed to create refresh token", errx.TypeInternal).
			WithDetail("user_id", t.UserID.String())
	}
	return nil
}

func (r *PostgresRefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*auth.RefreshToken, error) {
	return r.findOne(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)
}

func (r *PostgresRefreshTokenRepository) FindByHashForUpdate(ctx context.Context, hash string) (*auth.RefreshToken, error) {
	return r.findOne(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`, hash)
}

func (r *PostgresRefreshTokenRepository) findOne(ctx context.Context, query string, hash string) (*auth.RefreshToken, error) {
	var t auth.RefreshToken
	if err := r.db.GetContext(ctx, &t, query, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrInvalidToken()
		}
		return nil, errx.Wrap(err, "failed to load refresh token", errx.TypeInternal)
	}
	return &t, nil
}

func (r *PostgresRefreshTokenRepository) MarkRevoked(ctx context.Context, id kernel.RefreshTokenID, rev auth.Revocation) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, reason = $4, replaced_by_token = $5
		WHERE id = $1 AND revoked_at IS NULL`

	var replacedBy *string
	if rev.ReplacedBy != nil {
		s := rev.ReplacedBy.String()
		replacedBy = &s
	}

	result, err := r.db.ExecContext(ctx, query, id.String(), rev.At, rev.ByIP, string(rev.Reason), replacedBy)
	if err != nil {
		return false, errx.Wrap(err, "failed to revoke refresh token", errx.TypeInternal).
			WithDetail("token_id", id.String())
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to get rows affected on revoke", errx.TypeInternal)
	}
	return rows == 1, nil
}

func (r *PostgresRefreshTokenRepository) RevokeAllActiveForUser(ctx context.Context, userID kernel.UserID, rev auth.Revocation) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, reason = $4
		WHERE user_id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID.String(), rev.At, rev.ByIP, string(rev.Reason))
	if err != nil {
		return 0, errx.Wrap(err, "failed to revoke user refresh tokens", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}
	return result.RowsAffected()
}
