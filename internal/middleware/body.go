package middleware

import (
	"net/http"

	"github.com/taskflow/taskflow/internal/httputil"
)

// DefaultMaxBodySize is the JSON body cap applied when none is configured.
const DefaultMaxBodySize int64 = 10 << 10

// MaxBodySize caps request bodies at maxBytes (DefaultMaxBodySize when
// maxBytes <= 0). A declared Content-Length over the cap is answered with
// 413 before the handler runs; an undeclared one fails when decoded.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteFailure(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
