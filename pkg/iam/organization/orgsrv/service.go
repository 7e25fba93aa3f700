package orgsrv

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

const (
	defaultTimezone  = "UTC"
	defaultWorkHours = 8
	maxSlugAttempts  = 50
)

// CreateInput is a validated organization creation request.
type CreateInput struct {
	Name        string  `json:"name"`
	Size        int     `json:"size"`
	Domain      *string `json:"domain,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate applies the field rules: name of 2 to 50 characters, size of at least 1.
func (in *CreateInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	n := utf8.RuneCountInString(in.Name)
	switch {
	case n < 2:
		return organization.ErrRegistry.New(organization.CodeInvalidInput).
			WithDetail("name", "Organization name must be at least 2 characters")
	case n > 50:
		return organization.ErrRegistry.New(organization.CodeInvalidInput).
			WithDetail("name", "Organization name must be at most 50 characters")
	case in.Size < 1:
		return organization.ErrRegistry.New(organization.CodeInvalidInput).
			WithDetail("size", "Organization size must be at least 1")
	}
	return nil
}

// Created is the result of a successful creation.
type Created struct {
	Organization *organization.Organization
	Membership   *organization.Membership
}

type Service struct {
	uow   iamstore.UnitOfWork
	clock kernel.Clock
}

func NewService(uow iamstore.UnitOfWork, clock kernel.Clock) *Service {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &Service{uow: uow, clock: clock}
}

// CreateOrganization creates the organization and the caller's OWNER
// membership atomically. A user that already belongs to an organization gets
// a conflict and nothing is written.
func (s *Service) CreateOrganization(ctx context.Context, userID kernel.UserID, in CreateInput) (*Created, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	out := dbx.Atomically(ctx, s.uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[*Created] {
		created, err := s.CreateWithin(ctx, repos, userID, in)
		if err != nil {
			return dbx.Aborted[*Created](err)
		}
		return dbx.Committed(created)
	})

	created, err := out.Result()
	if err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"organization_id": created.Organization.ID,
		"slug":            created.Organization.Slug,
		"user_id":         userID,
	}).Info("Organization created")
	return created, nil
}

// CreateWithin performs the creation on repos, which the caller has already
// bound to a transaction. Signup uses it to create user and organization in
// one unit of work.
func (s *Service) CreateWithin(ctx context.Context, repos iamstore.Repositories, userID kernel.UserID, in CreateInput) (*Created, error) {
	existing, err := repos.Memberships.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, organization.ErrRegistry.New(organization.CodeAlreadyMember)
	}

	slug, err := s.uniqueSlug(ctx, repos.Organizations, in.Name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	org := &organization.Organization{
		ID:          kernel.NewID[kernel.OrganizationID](),
		Name:        in.Name,
		Slug:        slug,
		OwnerID:     userID,
		Domain:      in.Domain,
		Description: in.Description,
		Status:      organization.StatusActive,
		Size:        in.Size,
		Timezone:    defaultTimezone,
		WorkHours:   defaultWorkHours,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repos.Organizations.Create(ctx, org); err != nil {
		return nil, err
	}

	membership := &organization.Membership{
		ID:             kernel.NewID[kernel.MembershipID](),
		OrganizationID: org.ID,
		UserID:         userID,
		Role:           organization.RoleOwner,
		Status:         organization.MemberActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repos.Memberships.Create(ctx, membership); err != nil {
		return nil, err
	}

	return &Created{Organization: org, Membership: membership}, nil
}

func (s *Service) uniqueSlug(ctx context.Context, orgs organization.Repository, name string) (string, error) {
	base := organization.Slugify(name)
	for n := range maxSlugAttempts {
		candidate := organization.SlugCandidate(base, n)
		taken, err := orgs.SlugExists(ctx, candidate)
		if err != nil {
			return "", errx.Wrap(err, "failed to check slug", errx.TypeInternal)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", organization.ErrRegistry.New(organization.CodeSlugTaken).WithDetail("slug", base)
}

// GetUserOrganization resolves the caller's organization through their
// first membership.
func (s *Service) GetUserOrganization(ctx context.Context, userID kernel.UserID) (*organization.UserOrganization, error) {
	repos := s.uow.Repos()

	memberships, err := repos.Memberships.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, organization.ErrNoOrganization()
	}

	org, err := repos.Organizations.FindByID(ctx, memberships[0].OrganizationID)
	if err != nil {
		return nil, err
	}
	return &organization.UserOrganization{Organization: org, Membership: memberships[0]}, nil
}

// GetOrganizationForUser returns orgID as seen by userID, who must be a member.
func (s *Service) GetOrganizationForUser(ctx context.Context, orgID kernel.OrganizationID, userID kernel.UserID) (*organization.UserOrganization, error) {
	repos := s.uow.Repos()

	org, err := repos.Organizations.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	membership, err := repos.Memberships.FindByOrganizationAndUser(ctx, orgID, userID)
	if errx.IsCode(err, organization.CodeNotAMember) {
		return nil, err
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to load membership", errx.TypeInternal)
	}
	return &organization.UserOrganization{Organization: org, Membership: membership}, nil
}

// ListMembers pages through an organization's members, oldest first.
func (s *Service) ListMembers(ctx context.Context, orgID kernel.OrganizationID, page kernel.PaginationOptions) (kernel.Paginated[organization.Member], error) {
	return s.uow.Repos().Memberships.ListMembers(ctx, orgID, page.Normalize(50, 100))
}

// AddMemberInput adds an existing user to an organization.
type AddMemberInput struct {
	Email string            `json:"email"`
	Role  organization.Role `json:"role"`
}

// AddMember attaches an existing, membership-free user to orgID. OWNER is
// never granted this way.
func (s *Service) AddMember(ctx context.Context, orgID kernel.OrganizationID, in AddMemberInput) (*organization.Membership, error) {
	if !in.Role.IsValid() || in.Role == organization.RoleOwner {
		return nil, organization.ErrRegistry.New(organization.CodeInvalidInput).
			WithDetail("role", "Role must be one of ADMIN, MEMBER, VIEWER")
	}

	out := dbx.Atomically(ctx, s.uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[*organization.Membership] {
		u, err := repos.Users.FindByEmail(ctx, user.NormalizeEmail(in.Email))
		if err != nil {
			return dbx.Aborted[*organization.Membership](err)
		}

		existing, err := repos.Memberships.FindByUser(ctx, u.ID)
		if err != nil {
			return dbx.Aborted[*organization.Membership](err)
		}
		if len(existing) > 0 {
			return dbx.Aborted[*organization.Membership](organization.ErrRegistry.New(organization.CodeMembershipTaken))
		}

		now := s.clock.Now()
		m := &organization.Membership{
			ID:             kernel.NewID[kernel.MembershipID](),
			OrganizationID: orgID,
			UserID:         u.ID,
			Role:           in.Role,
			Status:         organization.MemberActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repos.Memberships.Create(ctx, m); err != nil {
			return dbx.Aborted[*organization.Membership](err)
		}
		return dbx.Committed(m)
	})
	return out.Result()
}
