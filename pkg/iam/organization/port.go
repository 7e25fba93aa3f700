package organization

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

type Repository interface {
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id kernel.OrganizationID) (*Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	// FindByUser returns the user's memberships, oldest first.
	FindByUser(ctx context.Context, userID kernel.UserID) ([]*Membership, error)
	FindByOrganizationAndUser(ctx context.Context, orgID kernel.OrganizationID, userID kernel.UserID) (*Membership, error)
	ListMembers(ctx context.Context, orgID kernel.OrganizationID, page kernel.PaginationOptions) (kernel.Paginated[Member], error)
}
