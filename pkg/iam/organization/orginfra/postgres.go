package orginfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var organizationColumns = []string{
	"id", "name", "slug", "owner_id", "domain", "description", "status",
	"size", "timezone", "work_hours", "created_at", "updated_at",
}

var membershipColumns = []string{
	"id", "organization_id", "user_id", "role", "status", "created_at", "updated_at",
}

// ============================================================================
// Organizations
// ============================================================================

type PostgresOrganizationRepository struct {
	db dbx.Querier
}

func NewPostgresOrganizationRepository(db dbx.Querier) *PostgresOrganizationRepository {
	return &PostgresOrganizationRepository{db: db}
}

func (r *PostgresOrganizationRepository) Create(ctx context.Context, org *organization.Organization) error {
	query, args, err := psql.Insert("organizations").
		Columns(organizationColumns...).
		Values(
			org.ID, org.Name, org.Slug, org.OwnerID, org.Domain, org.Description, org.Status,
			org.Size, org.Timezone, org.WorkHours, org.CreatedAt, org.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return errx.Wrap(err, "failed to build organization insert", errx.TypeInternal)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return organization.ErrRegistry.New(organization.CodeSlugTaken).WithDetail("slug", org.Slug)
		}
		return errx.Wrap(err, "failed to create organization", errx.TypeInternal).
			WithDetail("organization_id", org.ID.String())
	}
	return nil
}

func (r *PostgresOrganizationRepository) FindByID(ctx context.Context, id kernel.OrganizationID) (*organization.Organization, error) {
	query, args, err := psql.Select(organizationColumns...).
		From("organizations").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errx.Wrap(err, "failed to build organization query", errx.TypeInternal)
	}

	var org organization.Organization
	if err := r.db.GetContext(ctx, &org, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, organization.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to load organization", errx.TypeInternal)
	}
	return &org, nil
}

func (r *PostgresOrganizationRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	query, args, err := psql.Select("1").
		Prefix("SELECT EXISTS (").
		From("organizations").
		Where(sq.Eq{"slug": slug}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, errx.Wrap(err, "failed to build slug query", errx.TypeInternal)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, errx.Wrap(err, "failed to check slug", errx.TypeInternal)
	}
	return exists, nil
}

// ============================================================================
// Memberships
// ============================================================================

type PostgresMembershipRepository struct {
	db dbx.Querier
}

func NewPostgresMembershipRepository(db dbx.Querier) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{db: db}
}

func (r *PostgresMembershipRepository) Create(ctx context.Context, m *organization.Membership) error {
	query, args, err := psql.Insert("memberships").
		Columns(membershipColumns...).
		Values(m.ID, m.OrganizationID, m.UserID, m.Role, m.Status, m.CreatedAt, m.UpdatedAt).
		ToSql()
	if err != nil {
		return errx.Wrap(err, "failed to build membership insert", errx.TypeInternal)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return organization.ErrRegistry.New(organization.CodeMembershipTaken)
		}
		return errx.Wrap(err, "failed to create membership", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresMembershipRepository) FindByUser(ctx context.Context, userID kernel.UserID) ([]*organization.Membership, error) {
	query, args, err := psql.Select(membershipColumns...).
		From("memberships").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, errx.Wrap(err, "failed to build membership query", errx.TypeInternal)
	}

	var memberships []*organization.Membership
	if err := r.db.SelectContext(ctx, &memberships, query, args...); err != nil {
		return nil, errx.Wrap(err, "failed to list memberships", errx.TypeInternal)
	}
	return memberships, nil
}

func (r *PostgresMembershipRepository) FindByOrganizationAndUser(ctx context.Context, orgID kernel.OrganizationID, userID kernel.UserID) (*organization.Membership, error) {
	query, args, err := psql.Select(membershipColumns...).
		From("memberships").
		Where(sq.Eq{"organization_id": orgID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, errx.Wrap(err, "failed to build membership query", errx.TypeInternal)
	}

	var m organization.Membership
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, organization.ErrRegistry.New(organization.CodeNotAMember)
		}
		return nil, errx.Wrap(err, "failed to load membership", errx.TypeInternal)
	}
	return &m, nil
}

func (r *PostgresMembershipRepository) ListMembers(ctx context.Context, orgID kernel.OrganizationID, page kernel.PaginationOptions) (kernel.Paginated[organization.Member], error) {
	countQuery, countArgs, err := psql.Select("COUNT(*)").
		From("memberships").
		Where(sq.Eq{"organization_id": orgID}).
		ToSql()
	if err != nil {
		return kernel.Paginated[organization.Member]{}, errx.Wrap(err, "failed to build member count", errx.TypeInternal)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return kernel.Paginated[organization.Member]{}, errx.Wrap(err, "failed to count members", errx.TypeInternal)
	}

	query, args, err := psql.Select(
		"m.id AS membership_id", "m.user_id", "u.first_name", "u.last_name",
		"u.email", "m.role", "m.status", "m.created_at",
	).
		From("memberships m").
		Join("users u ON u.id = m.user_id").
		Where(sq.Eq{"m.organization_id": orgID}).
		OrderBy("m.created_at ASC").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return kernel.Paginated[organization.Member]{}, errx.Wrap(err, "failed to build member query", errx.TypeInternal)
	}

	members := []organization.Member{}
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return kernel.Paginated[organization.Member]{}, errx.Wrap(err, "failed to list members", errx.TypeInternal)
	}
	return kernel.NewPaginated(members, page, total), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
