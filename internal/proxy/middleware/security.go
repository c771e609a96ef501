// Package middleware implements the request-guard chain in front of the
// proxy: host/method checks, path screening, per-IP rate limiting, body-size
// limits, probe filtering and response security headers.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/capturellm/captureproxy/internal/config"
)

func writeJSONError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error": {"message": %q, "type": %q}}`, message, errType)
}

// SecurityHeaders hardens every response: nosniff, frame denial, a strict
// CSP, and a blanked Server header.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Server", "")
		next.ServeHTTP(w, r)
	})
}

// SecurityGuard enforces the Host allow-list, the method allow-list, and
// JSON content type on POST bodies.
func SecurityGuard(sec config.Security) func(next http.Handler) http.Handler {
	allowedMethods := make(map[string]bool, len(sec.AllowedMethods))
	for _, m := range sec.AllowedMethods {
		allowedMethods[strings.ToUpper(m)] = true
	}
	allowedHosts := make(map[string]bool, len(sec.AllowedHosts))
	for _, h := range sec.AllowedHosts {
		allowedHosts[strings.ToLower(h)] = true
	}
	enforceJSON := sec.EnforceJSON == nil || *sec.EnforceJSON

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sec.EnforceHost && len(allowedHosts) > 0 {
				host := strings.ToLower(r.Host)
				if i := strings.LastIndex(host, ":"); i >= 0 {
					host = host[:i]
				}
				if !allowedHosts[host] {
					writeJSONError(w, http.StatusForbidden, "host not allowed", "security_error")
					return
				}
			}

			if !allowedMethods[r.Method] {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "security_error")
				return
			}

			if enforceJSON && r.Method == http.MethodPost {
				ct := r.Header.Get("Content-Type")
				if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
					writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", "security_error")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BodySizeGuard rejects requests whose declared Content-Length exceeds the
// configured maximum.
func BodySizeGuard(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.ContentLength > maxBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large", "security_error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
