package shared

import (
	"net/http"

	"github.com/slipdesk/slipdesk/internal/platform/httpx"
)

// Role enumerates the organisation roles known to slipdesk.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleSales    Role = "Sales"
	RoleOperator Role = "Service Operator"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSales, RoleOperator:
		return true
	}
	return false
}

// RequireRole guards an endpoint group so only the listed roles may pass.
// Requests without an identity are rejected as unauthorized.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := IdentityFromContext(r.Context())
			if ident == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if _, ok := allowed[ident.Role]; !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "role not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
