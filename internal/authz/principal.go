package authz

import "context"

// Principal is the authenticated actor attached to a request or realtime connection.
type Principal struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	// Role is the raw role claim. It is only trusted after ParseRole.
	Role string `json:"role"`
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// ParsedRole returns the principal's role, or RoleUnknown when absent or unparseable.
func (p Principal) ParsedRole() Role {
	if !p.Authenticated() {
		return RoleUnknown
	}
	role, _ := ParseRole(p.Role)
	return role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request principal; the zero Principal is anonymous.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
