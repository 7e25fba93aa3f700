package organization

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// ============================================================================
// Enums
// ============================================================================

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

type MemberStatus string

const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberDisabled MemberStatus = "DISABLED"
	MemberPending  MemberStatus = "PENDING"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ============================================================================
// Entities
// ============================================================================

type Organization struct {
	ID          kernel.OrganizationID `db:"id"`
	Name        string                `db:"name"`
	Slug        string                `db:"slug"`
	OwnerID     kernel.UserID         `db:"owner_id"`
	Domain      *string               `db:"domain"`
	Description *string               `db:"description"`
	Status      Status                `db:"status"`
	Size        int                   `db:"size"`
	Timezone    string                `db:"timezone"`
	WorkHours   int                   `db:"work_hours"`
	CreatedAt   time.Time             `db:"created_at"`
	UpdatedAt   time.Time             `db:"updated_at"`
}

// Settings mirrors the settings object exposed by the API.
type Settings struct {
	Timezone  string `json:"timezone"`
	WorkHours int    `json:"workHours"`
}

type Membership struct {
	ID             kernel.MembershipID   `db:"id"`
	OrganizationID kernel.OrganizationID `db:"organization_id"`
	UserID         kernel.UserID         `db:"user_id"`
	Role           Role                  `db:"role"`
	Status         MemberStatus          `db:"status"`
	CreatedAt      time.Time             `db:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at"`
}

// Member is a membership joined with the member's public user fields.
type Member struct {
	MembershipID kernel.MembershipID `db:"membership_id" json:"membershipId"`
	UserID       kernel.UserID       `db:"user_id" json:"userId"`
	FirstName    string              `db:"first_name" json:"firstName"`
	LastName     string              `db:"last_name" json:"lastName"`
	Email        string              `db:"email" json:"email"`
	Role         Role                `db:"role" json:"role"`
	Status       MemberStatus        `db:"status" json:"status"`
	JoinedAt     time.Time           `db:"created_at" json:"joinedAt"`
}

// UserOrganization is the caller's organization together with their role in it.
type UserOrganization struct {
	Organization *Organization
	Membership   *Membership
}

func (uo *UserOrganization) Role() Role {
	return uo.Membership.Role
}

// HasRole reports whether the membership is active and its role is one of allowed.
func (uo *UserOrganization) HasRole(allowed ...Role) bool {
	if uo == nil || uo.Membership == nil || uo.Membership.Status != MemberActive {
		return false
	}
	for _, r := range allowed {
		if uo.Membership.Role == r {
			return true
		}
	}
	return false
}

// ============================================================================
// Slugs
// ============================================================================

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses runs of anything but [a-z0-9] into a
// single dash and trims leading and trailing dashes.
func Slugify(name string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// SlugCandidate returns the n-th candidate for base: base itself, then base-1, base-2...
func SlugCandidate(base string, n int) string {
	if base == "" {
		base = "org"
	}
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// ============================================================================
// DTOs
// ============================================================================

type Response struct {
	ID          kernel.OrganizationID `json:"id"`
	Name        string                `json:"name"`
	Slug        string                `json:"slug"`
	Domain      *string               `json:"domain,omitempty"`
	Description *string               `json:"description,omitempty"`
	Status      Status                `json:"status"`
	Size        int                   `json:"size"`
	Settings    Settings              `json:"settings"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

func (o *Organization) ToResponse() Response {
	return Response{
		ID:          o.ID,
		Name:        o.Name,
		Slug:        o.Slug,
		Domain:      o.Domain,
		Description: o.Description,
		Status:      o.Status,
		Size:        o.Size,
		Settings:    Settings{Timezone: o.Timezone, WorkHours: o.WorkHours},
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("ORG")

var (
	CodeAlreadyMember   = ErrRegistry.Register("ALREADY_MEMBER", errx.TypeConflict, http.StatusConflict, "User already has an organization")
	CodeNoOrganization  = ErrRegistry.Register("NO_ORGANIZATION", errx.TypeNotFound, http.StatusNotFound, "User does not have an organization")
	CodeNotFound        = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Organization not found")
	CodeNotAMember      = ErrRegistry.Register("NOT_A_MEMBER", errx.TypeAuthorization, http.StatusForbidden, "You are not a member of this organization")
	CodeAccessDenied    = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
	CodeInvalidInput    = ErrRegistry.Register("INVALID_INPUT", errx.TypeValidation, http.StatusBadRequest, "Invalid organization data")
	CodeSlugTaken       = ErrRegistry.Register("SLUG_TAKEN", errx.TypeConflict, http.StatusConflict, "Organization slug already exists")
	CodeMembershipTaken = ErrRegistry.Register("MEMBERSHIP_TAKEN", errx.TypeConflict, http.StatusConflict, "User is already a member of an organization")
)

func ErrNoOrganization() *errx.Error { return ErrRegistry.New(CodeNoOrganization) }
func ErrNotFound() *errx.Error       { return ErrRegistry.New(CodeNotFound) }

// ErrAccessDenied names the roles that would have been accepted.
func ErrAccessDenied(required ...Role) *errx.Error {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return ErrRegistry.NewWithMessage(CodeAccessDenied, "Access denied. Required roles: "+strings.Join(names, ", ")).
		WithDetail("required_roles", names)
}
