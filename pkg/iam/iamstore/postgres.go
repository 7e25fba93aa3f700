package iamstore

import (
	"context"
	"embed"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orginfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/userinfra"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewPostgresUnitOfWork binds the Postgres repositories to db or to one of
// its transactions.
func NewPostgresUnitOfWork(db *sqlx.DB) *dbx.SQLUnitOfWork[Repositories] {
	return dbx.NewSQLUnitOfWork(db, bindPostgres)
}

func bindPostgres(q dbx.Querier) Repositories {
	return Repositories{
		Users:         userinfra.NewPostgresUserRepository(q),
		RefreshTokens: authinfra.NewPostgresRefreshTokenRepository(q),
		Organizations: orginfra.NewPostgresOrganizationRepository(q),
		Memberships:   orginfra.NewPostgresMembershipRepository(q),
	}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return errx.Wrap(err, "failed to set migration dialect", errx.TypeInternal)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return errx.Wrap(err, "failed to apply migrations", errx.TypeInternal)
	}
	return nil
}
