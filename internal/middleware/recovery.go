package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/taskflow/taskflow/internal/httputil"
)

// Recoverer turns a handler panic into the generic 500 envelope and logs
// the panic value with its stack. http.ErrAbortHandler is re-raised.
func Recoverer(logger *slog.Logger, errs httputil.ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("handler panicked",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)
				errs.Write(w, r, fmt.Errorf("recovered panic: %v", rvr))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
