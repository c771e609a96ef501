// Package logging configures the process-wide logrus logger and the filter
// that keeps scanner-probe noise out of the logs.
package logging

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/config"
)

// Setup configures the global logger: text output with timestamps and the
// probe-suppression filter built from cfg. Unknown levels fall back to info.
func Setup(level string, cfg config.ProbeFilter) *ProbeSuppressor {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	suppressor := NewProbeSuppressor(cfg, &log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetFormatter(suppressor)
	return suppressor
}
