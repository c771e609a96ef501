// Package config loads the proxy configuration from an optional JSON or
// YAML file and fills in defaults for everything omitted.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Domain is one allow-listed upstream.
type Domain struct {
	// AuthType pins the protocol dialect (openai/anthropic/google). Empty
	// means infer from the request path.
	AuthType string `json:"auth_type" yaml:"auth_type"`
	HTTPS    bool   `json:"https" yaml:"https"`
}

// Security configures the request-guard middleware.
type Security struct {
	AllowedHosts       []string `json:"allowed_hosts" yaml:"allowed_hosts"`
	EnforceHost        bool     `json:"enforce_host" yaml:"enforce_host"`
	AllowedMethods     []string `json:"allowed_methods" yaml:"allowed_methods"`
	EnforceJSON        *bool    `json:"enforce_json" yaml:"enforce_json"`
	MaxBodySize        int64    `json:"max_body_size" yaml:"max_body_size"`
	Rate               float64  `json:"rate" yaml:"rate"`
	Burst              int      `json:"burst" yaml:"burst"`
	SuspiciousPatterns []string `json:"suspicious_patterns" yaml:"suspicious_patterns"`
}

// ProbeRequest configures the request-level probe filter.
type ProbeRequest struct {
	PathBlocklist       []string `json:"path_blocklist" yaml:"path_blocklist"`
	PathPrefixBlocklist []string `json:"path_prefix_blocklist" yaml:"path_prefix_blocklist"`
	UserAgentSubstrings []string `json:"user_agent_substrings" yaml:"user_agent_substrings"`
	AllowedMethods      []string `json:"allowed_methods" yaml:"allowed_methods"`
	IPBlocklist         []string `json:"ip_blocklist" yaml:"ip_blocklist"`
}

// ProbeFilter configures the log-suppression filter for probe noise.
type ProbeFilter struct {
	Patterns                 []string `json:"patterns" yaml:"patterns"`
	IPPatterns               []string `json:"ip_patterns" yaml:"ip_patterns"`
	CustomPatterns           []string `json:"custom_patterns" yaml:"custom_patterns"`
	CustomIPPatterns         []string `json:"custom_ip_patterns" yaml:"custom_ip_patterns"`
	DisableDefaultPatterns   bool     `json:"disable_default_patterns" yaml:"disable_default_patterns"`
	DisableDefaultIPPatterns bool     `json:"disable_default_ip_patterns" yaml:"disable_default_ip_patterns"`
}

// Config is the full proxy configuration.
type Config struct {
	AllowedDomains map[string]Domain `json:"allowed_domains" yaml:"allowed_domains"`
	// DefaultUpstream serves the fixed /v1/* entry points.
	DefaultUpstream string       `json:"default_upstream" yaml:"default_upstream"`
	Security        Security     `json:"security" yaml:"security"`
	ProbeRequest    ProbeRequest `json:"probe_request" yaml:"probe_request"`
	ProbeFilter     ProbeFilter  `json:"probe_filter" yaml:"probe_filter"`
}

// Default returns the built-in configuration: a minimal domain allow-list
// and conservative guard settings.
func Default() *Config {
	enforceJSON := true
	return &Config{
		AllowedDomains: map[string]Domain{
			"generativelanguage.googleapis.com": {AuthType: "google", HTTPS: true},
			"api.openai.com":                    {AuthType: "openai", HTTPS: true},
		},
		DefaultUpstream: "generativelanguage.googleapis.com",
		Security: Security{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			EnforceJSON:    &enforceJSON,
			MaxBodySize:    1 << 20,
			Rate:           5,
			Burst:          20,
			SuspiciousPatterns: []string{
				`\.(php|asp|aspx|jsp|cgi)$`,
				`/(wp-admin|wp-login|phpmyadmin|admin|login)\b`,
				`/(\.git|\.env|\.aws|\.ssh)\b`,
				`:[0-9]+$`,
			},
		},
		ProbeRequest: ProbeRequest{
			PathBlocklist:       []string{"/", "/favicon.ico"},
			PathPrefixBlocklist: []string{"/.well-known/", "/locales/"},
			UserAgentSubstrings: []string{"CensysInspect", "Go-http-client"},
			AllowedMethods:      []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			IPBlocklist: []string{
				"193.34.212.110",
				"185.191.127.222",
				"162.142.125.124",
				"194.62.248.69",
				"209.38.219.203",
			},
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not an
// error: the defaults apply unchanged. YAML is selected by file extension,
// everything else decodes as JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Decode into a zero value so a configured allow-list replaces the
	// default set instead of merging with it.
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores required fields a sparse config file cleared.
func (c *Config) applyDefaults() {
	d := Default()
	if len(c.AllowedDomains) == 0 {
		c.AllowedDomains = d.AllowedDomains
	}
	if c.DefaultUpstream == "" {
		c.DefaultUpstream = d.DefaultUpstream
	}
	if len(c.Security.AllowedMethods) == 0 {
		c.Security.AllowedMethods = d.Security.AllowedMethods
	}
	if c.Security.EnforceJSON == nil {
		c.Security.EnforceJSON = d.Security.EnforceJSON
	}
	if c.Security.MaxBodySize <= 0 {
		c.Security.MaxBodySize = d.Security.MaxBodySize
	}
	if c.Security.Rate <= 0 {
		c.Security.Rate = d.Security.Rate
	}
	if c.Security.Burst <= 0 {
		c.Security.Burst = d.Security.Burst
	}
	if c.Security.SuspiciousPatterns == nil {
		c.Security.SuspiciousPatterns = d.Security.SuspiciousPatterns
	}
	if c.ProbeRequest.PathBlocklist == nil {
		c.ProbeRequest.PathBlocklist = d.ProbeRequest.PathBlocklist
	}
	if c.ProbeRequest.PathPrefixBlocklist == nil {
		c.ProbeRequest.PathPrefixBlocklist = d.ProbeRequest.PathPrefixBlocklist
	}
	if c.ProbeRequest.UserAgentSubstrings == nil {
		c.ProbeRequest.UserAgentSubstrings = d.ProbeRequest.UserAgentSubstrings
	}
	if len(c.ProbeRequest.AllowedMethods) == 0 {
		c.ProbeRequest.AllowedMethods = d.ProbeRequest.AllowedMethods
	}
	if c.ProbeRequest.IPBlocklist == nil {
		c.ProbeRequest.IPBlocklist = d.ProbeRequest.IPBlocklist
	}
}

// DomainAllowed reports whether domain may be proxied to.
func (c *Config) DomainAllowed(domain string) bool {
	_, ok := c.AllowedDomains[domain]
	return ok
}

// Scheme returns the URL scheme for an allow-listed domain.
func (c *Config) Scheme(domain string) string {
	if d, ok := c.AllowedDomains[domain]; ok && !d.HTTPS {
		return "http"
	}
	return "https"
}
