package kernel

import "github.com/google/uuid"

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type OrganizationID string

func NewOrganizationID(id string) OrganizationID { return OrganizationID(id) }
func (o OrganizationID) String() string          { return string(o) }
func (o OrganizationID) IsEmpty() bool           { return string(o) == "" }

type MembershipID string

func (m MembershipID) String() string { return string(m) }

type RefreshTokenID string

func (t RefreshTokenID) String() string { return string(t) }

// NewID returns a random UUIDv4 string for any of the ID types above.
func NewID[T ~string]() T {
	return T(uuid.NewString())
}
