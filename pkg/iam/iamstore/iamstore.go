// Package iamstore composes the IAM repositories into one set so services
// can run multi-record mutations through a single unit of work.
package iamstore

import (
	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
)

// Repositories is the repository set bound to one connection or transaction.
type Repositories struct {
	Users         user.Repository
	RefreshTokens auth.RefreshTokenRepository
	Organizations organization.Repository
	Memberships   organization.MembershipRepository
}

// UnitOfWork is the transactional boundary shared by the IAM services.
type UnitOfWork = dbx.UnitOfWork[Repositories]
