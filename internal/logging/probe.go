package logging

import (
	"regexp"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/config"
)

// ProbeSuppressor is a logrus.Formatter that drops entries whose message
// matches a probe pattern, so scanner traffic never reaches the log output.
// Patterns can be adjusted at runtime.
type ProbeSuppressor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	next     log.Formatter
}

// NewProbeSuppressor compiles the configured pattern sets around next.
// Invalid patterns are skipped with a warning.
func NewProbeSuppressor(cfg config.ProbeFilter, next log.Formatter) *ProbeSuppressor {
	s := &ProbeSuppressor{next: next}

	patterns := cfg.Patterns
	if cfg.DisableDefaultPatterns {
		patterns = nil
	}
	patterns = append(patterns, cfg.CustomPatterns...)

	ipPatterns := cfg.IPPatterns
	if cfg.DisableDefaultIPPatterns {
		ipPatterns = nil
	}
	ipPatterns = append(ipPatterns, cfg.CustomIPPatterns...)

	for _, raw := range append(patterns, ipPatterns...) {
		s.AddPattern(raw)
	}
	return s
}

// Format drops matching entries by emitting zero bytes; everything else is
// delegated to the wrapped formatter.
func (s *ProbeSuppressor) Format(entry *log.Entry) ([]byte, error) {
	if s.Suppressed(entry.Message) {
		return nil, nil
	}
	return s.next.Format(entry)
}

// Suppressed reports whether a message matches any probe pattern.
func (s *ProbeSuppressor) Suppressed(message string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// AddPattern compiles and installs one more pattern. Returns false when the
// expression does not compile.
func (s *ProbeSuppressor) AddPattern(raw string) bool {
	p, err := regexp.Compile(raw)
	if err != nil {
		log.WithError(err).WithField("pattern", raw).Warn("skipping invalid probe pattern")
		return false
	}
	s.mu.Lock()
	s.patterns = append(s.patterns, p)
	s.mu.Unlock()
	return true
}

// RemovePattern drops a previously installed pattern by its source text.
func (s *ProbeSuppressor) RemovePattern(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.patterns {
		if p.String() == raw {
			s.patterns = append(s.patterns[:i], s.patterns[i+1:]...)
			return true
		}
	}
	return false
}
