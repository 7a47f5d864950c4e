package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/model"
)

var errInvalidID = apperr.Validation("Invalid ID")

// ValidateIDParam rejects requests whose named URL parameters are not
// well-formed identifiers, before any handler or store sees them.
func ValidateIDParam(errs httputil.ErrorWriter, names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, name := range names {
				if !model.IsValidID(chi.URLParam(r, name)) {
					errs.Write(w, r, errInvalidID)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
