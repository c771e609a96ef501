package middleware

import (
	"net/http"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var multiSlash = regexp.MustCompile(`//+`)

// PathGuard screens request paths against the configured suspicious-pattern
// list. Runs of slashes get a 400 with a hint; everything else suspicious is
// a plain 404 so scanners learn nothing.
func PathGuard(patterns []string) func(next http.Handler) http.Handler {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		p, err := regexp.Compile(raw)
		if err != nil {
			log.WithError(err).WithField("pattern", raw).Warn("skipping invalid suspicious pattern")
			continue
		}
		compiled = append(compiled, p)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if strings.Contains(path, "//") && multiSlash.MatchString(path) {
				writeJSONError(w, http.StatusBadRequest, "malformed path: repeated slashes", "path_error")
				return
			}

			for _, p := range compiled {
				if p.MatchString(path) {
					log.WithFields(log.Fields{
						"path":   path,
						"remote": r.RemoteAddr,
					}).Debug("blocked suspicious path")
					http.NotFound(w, r)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
