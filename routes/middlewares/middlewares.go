package middlewares

import (
	"net/http"
	"strings"

	"github.com/mbolis/caps-forms/httpx"
	"github.com/mbolis/caps-forms/identity"
	"github.com/mbolis/caps-forms/log"
)

// Headers set by the authenticating reverse proxy in front of the service.
const (
	UserHeader  = "X-Forwarded-User"
	RolesHeader = "X-Forwarded-Roles"
)

// Identity copies the upstream caller identity into the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity.Identity{User: strings.TrimSpace(r.Header.Get(UserHeader))}
		if rolesHeader := r.Header.Get(RolesHeader); rolesHeader != "" {
			for _, role := range strings.Split(rolesHeader, ",") {
				if role = strings.TrimSpace(role); role != "" {
					id.Roles = append(id.Roles, role)
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(identity.With(r.Context(), id)))
	})
}

// Admin checks for the 'admin' role when enforce is set.
func Admin(enforce bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enforce {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := identity.From(r.Context())
			if !id.HasRole("admin") {
				httpx.LogStatus(w, r, http.StatusForbidden, log.DebugLevel, "admin.forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
