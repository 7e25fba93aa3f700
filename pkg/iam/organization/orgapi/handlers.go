package orgapi

import (
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orgsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	svc *orgsrv.Service
	mw  *auth.TokenMiddleware
}

func NewHandlers(svc *orgsrv.Service, mw *auth.TokenMiddleware) *Handlers {
	return &Handlers{svc: svc, mw: mw}
}

// RegisterRoutes mounts /organizations on router. Every route requires an
// authenticated caller; member management also requires OWNER or ADMIN.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/organizations", h.mw.Authenticate())
	managers := h.mw.RequireRole(organization.RoleOwner, organization.RoleAdmin)

	g.Post("/", h.Create)
	g.Get("/", h.Get)
	g.Get("/members", managers, h.ListMembers)
	g.Post("/members", managers, h.AddMember)
}

func (h *Handlers) Create(c *fiber.Ctx) error {
	ac, ok := auth.AuthFrom(c)
	if !ok {
		return auth.ErrMissingToken()
	}

	var in orgsrv.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return errx.Validation("Invalid request body")
	}
	if err := in.Validate(); err != nil {
		return err
	}

	created, err := h.svc.CreateOrganization(c.UserContext(), ac.UserID, in)
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusCreated, fiber.Map{
		"organizationId": created.Organization.ID,
		"membershipId":   created.Membership.ID,
	}, "Organization created successfully")
}

// Get returns the organization named by ?orgId= together with the caller's role in it.
func (h *Handlers) Get(c *fiber.Ctx) error {
	ac, ok := auth.AuthFrom(c)
	if !ok {
		return auth.ErrMissingToken()
	}

	orgID := c.Query("orgId")
	if orgID == "" {
		return errx.Validation("Organization ID is required")
	}

	uo, err := h.svc.GetOrganizationForUser(c.UserContext(), kernel.NewOrganizationID(orgID), ac.UserID)
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{
		"organization": uo.Organization.ToResponse(),
		"role":         uo.Role(),
	}, "Organization retrieved successfully")
}

func (h *Handlers) ListMembers(c *fiber.Ctx) error {
	uo, ok := auth.CurrentOrganization(c)
	if !ok {
		return organization.ErrNoOrganization()
	}

	page, err := h.svc.ListMembers(c.UserContext(), uo.Organization.ID, kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("pageSize", 50),
	})
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, page, "")
}

func (h *Handlers) AddMember(c *fiber.Ctx) error {
	uo, ok := auth.CurrentOrganization(c)
	if !ok {
		return organization.ErrNoOrganization()
	}

	var in orgsrv.AddMemberInput
	if err := c.BodyParser(&in); err != nil {
		return errx.Validation("Invalid request body")
	}

	m, err := h.svc.AddMember(c.UserContext(), uo.Organization.ID, in)
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusCreated, fiber.Map{
		"membershipId": m.ID,
		"userId":       m.UserID,
		"role":         m.Role,
	}, "Member added successfully")
}
