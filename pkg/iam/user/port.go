package user

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// Repository persists users. Finders return a USER_NOT_FOUND error on a miss;
// Create returns USER_EMAIL_TAKEN when the normalized email already exists.
type Repository interface {
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error
}
