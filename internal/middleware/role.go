package middleware

import (
	"net/http"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/model"
)

// RequireRole returns middleware that admits only callers holding one of
// roles. Must be applied after Auth.
func RequireRole(errs httputil.ErrorWriter, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(auth.UserFromContext(r.Context()), roles...); err != nil {
				errs.Write(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is a convenience middleware for admin-only routes.
func RequireAdmin(errs httputil.ErrorWriter) func(http.Handler) http.Handler {
	return RequireRole(errs, model.RoleAdmin)
}
