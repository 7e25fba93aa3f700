package userinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/lib/pq"
)

const userColumns = `id, first_name, last_name, email, password_hash, is_email_verified,
	email_verification_code_hash, email_verification_code_expiry,
	password_reset_code_hash, password_reset_code_expiry, created_at, updated_at`

// PostgresUserRepository stores users in the users table.
type PostgresUserRepository struct {
	db dbx.Querier
}

// NewPostgresUserRepository works over a plain connection or a transaction.
func NewPostgresUserRepository(db dbx.Querier) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (*user.User, error) {
	var u user.User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to load user", errx.TypeInternal)
	}
	return &u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, first_name, last_name, email, password_hash, is_email_verified,
			email_verification_code_hash, email_verification_code_expiry,
			password_reset_code_hash, password_reset_code_expiry, created_at, updated_at
		) VALUES (
			:id, :first_name, :last_name, :email, :password_hash, :is_email_verified,
			:email_verification_code_hash, :email_verification_code_expiry,
			:password_reset_code_hash, :password_reset_code_expiry, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return user.ErrEmailTaken()
		}
		return errx.Wrap(err, "failed to create user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	return nil
}

// Save writes every mutable column of an existing user.
func (r *PostgresUserRepository) Save(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			first_name = :first_name,
			last_name = :last_name,
			password_hash = :password_hash,
			is_email_verified = :is_email_verified,
			email_verification_code_hash = :email_verification_code_hash,
			email_verification_code_expiry = :email_verification_code_expiry,
			password_reset_code_hash = :password_reset_code_hash,
			password_reset_code_expiry = :password_reset_code_expiry,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, u)
	if err != nil {
		return errx.Wrap(err, "failed to update user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on update", errx.TypeInternal)
	}
	if rows == 0 {
		return user.ErrUserNotFound()
	}
	return nil
}
