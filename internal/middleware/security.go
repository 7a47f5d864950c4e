package middleware

import (
	"net/http"
	"strconv"
)

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment drops HSTS so plain-http local setups keep working.
	IsDevelopment bool
	// HSTSMaxAge defaults to one year.
	HSTSMaxAge int
}

const defaultHSTSMaxAge = 365 * 24 * 60 * 60

// Security sets the hardening headers on every response. The API only
// serves JSON, so the CSP forbids everything.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	headers := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"X-XSS-Protection", "0"},
		{"Referrer-Policy", "no-referrer"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Cross-Origin-Opener-Policy", "same-origin"},
		{"Cross-Origin-Resource-Policy", "same-origin"},
		{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
		{"Cache-Control", "no-store"},
	}
	if !cfg.IsDevelopment {
		maxAge := cfg.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = defaultHSTSMaxAge
		}
		headers = append(headers, [2]string{
			"Strict-Transport-Security", "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains",
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
