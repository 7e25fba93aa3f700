package kernel

import "context"

// AuthContext is the identity extracted from a verified access token and
// attached to each authenticated request.
type AuthContext struct {
	UserID UserID `json:"id"`
	Email  string `json:"email"`
}

// IsValid reports whether the context identifies a user
func (ac *AuthContext) IsValid() bool {
	return ac != nil && !ac.UserID.IsEmpty()
}

type ContextKey string

const (
	// AuthContextKey stores the *AuthContext in context.Context and fiber locals
	AuthContextKey ContextKey = "auth_context"

	// MembershipContextKey stores the caller's organization and role once RBAC ran
	MembershipContextKey ContextKey = "membership"

	// RequestIDKey stores the request ID
	RequestIDKey ContextKey = "request_id"
)

// WithAuth returns a copy of ctx carrying ac.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// AuthFrom extracts the AuthContext placed by WithAuth.
func AuthFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return ac, ok && ac.IsValid()
}
