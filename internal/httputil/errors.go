package httputil

import (
	"log/slog"
	"net/http"

	"github.com/taskflow/taskflow/internal/apperr"
)

// ErrorWriter translates errors into responses. It is the only place where
// error kinds become status codes.
type ErrorWriter struct {
	Logger *slog.Logger
	// ExposeInternal adds the underlying error text to 500 responses.
	// Only enabled in development.
	ExposeInternal bool
}

// Write maps err to a status code and envelope. Operational errors use their
// own message; anything else is logged and reported generically.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperr.As(err); ok && appErr.Kind != apperr.KindInternal {
		WriteFailure(w, appErr.Kind.HTTPStatus(), appErr.Message)
		return
	}

	ew.logger().Error("internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestID(r.Context())),
	)

	body := Envelope{Success: false, Message: "Something went wrong"}
	if ew.ExposeInternal {
		body.Error = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, body)
}

func (ew ErrorWriter) logger() *slog.Logger {
	if ew.Logger != nil {
		return ew.Logger
	}
	return slog.Default()
}
