package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/taskflow/taskflow/internal/apperr"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// DecodeJSON decodes a single JSON value from the request body into dst.
// Unknown fields, trailing data, malformed or oversized bodies become
// validation errors. An empty body decodes to the zero value.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		// A second value, or garbage after the first, is rejected.
		if err = dec.Decode(&struct{}{}); errors.Is(err, io.EOF) {
			return nil
		}
		if err == nil {
			err = errors.New("body must contain a single JSON value")
		}
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.Validation("Request body too large").Wrap(err)
	}
	return apperr.Validation("Invalid request body").Wrap(err)
}

// QueryInt parses an integer query parameter, returning def when absent.
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Invalid " + key)
	}
	return v, nil
}
