package middleware

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/config"
)

// ProbeFilter short-circuits obvious scanner traffic with a silent 404:
// blocklisted IPs, known probe paths and prefixes, scanner user agents, and
// methods outside the probe allow-list.
func ProbeFilter(cfg config.ProbeRequest) func(next http.Handler) http.Handler {
	blockedIPs := make(map[string]bool, len(cfg.IPBlocklist))
	for _, ip := range cfg.IPBlocklist {
		blockedIPs[ip] = true
	}
	blockedPaths := make(map[string]bool, len(cfg.PathBlocklist))
	for _, p := range cfg.PathBlocklist {
		blockedPaths[p] = true
	}
	allowedMethods := make(map[string]bool, len(cfg.AllowedMethods))
	for _, m := range cfg.AllowedMethods {
		allowedMethods[strings.ToUpper(m)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			probe := blockedIPs[clientIP(r)] ||
				blockedPaths[r.URL.Path] ||
				hasPrefixAny(r.URL.Path, cfg.PathPrefixBlocklist) ||
				containsAny(r.UserAgent(), cfg.UserAgentSubstrings) ||
				!allowedMethods[r.Method]

			if probe {
				log.WithFields(log.Fields{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
					"ua":     r.UserAgent(),
				}).Debug("dropped probe request")
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasPrefixAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
