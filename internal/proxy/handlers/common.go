// Package handlers implements the proxy's HTTP surface: the dynamic
// domain-dispatch proxy, the fixed OpenAI-style entry points, and the
// capture review API.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/capturellm/captureproxy/internal/config"
	"github.com/capturellm/captureproxy/internal/queue"
	"github.com/capturellm/captureproxy/internal/store"
	"github.com/capturellm/captureproxy/internal/upstream"
)

// maxContentChars caps the total prompt text length forwarded upstream.
const maxContentChars = 8_000_000

// Deps carries the shared services every handler needs.
type Deps struct {
	Cfg    *config.Config
	Client *upstream.Client
	Writer *queue.Writer
	Store  *store.Store
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error": %q}`, message)
}

var googleModelPath = regexp.MustCompile(`/v1beta/models/([^:]+)`)

// detectAuthType infers the protocol dialect from the request path when the
// domain config does not pin one.
func detectAuthType(path string) string {
	switch {
	case strings.Contains(path, "/v1beta/models/") && strings.Contains(path, ":generateContent"):
		return "google"
	case strings.Contains(path, "/anthropic/") || strings.Contains(path, "/v1/messages"):
		return "anthropic"
	default:
		return "openai"
	}
}

// resolveAuthType prefers the allow-list entry's pinned auth type and falls
// back to path inference.
func resolveAuthType(cfg *config.Config, domain, path string) string {
	if d, ok := cfg.AllowedDomains[domain]; ok && d.AuthType != "" {
		return d.AuthType
	}
	return detectAuthType(path)
}

// extractModel pulls the model name from the Google URL path or the request
// body's model field.
func extractModel(body []byte, path, authType string) string {
	if authType == "google" {
		if m := googleModelPath.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	if model := gjson.GetBytes(body, "model"); model.Exists() {
		return model.String()
	}
	return "unknown"
}

// prepareAuthHeaders builds the upstream header set: the client's
// Authorization and every x-* header pass through verbatim, Content-Type is
// forced to JSON. An Anthropic x-api-key is promoted to a bearer token when
// no Authorization header came in.
func prepareAuthHeaders(in http.Header, authType string) http.Header {
	out := http.Header{}
	out.Set("Content-Type", "application/json")

	if auth := in.Get("Authorization"); auth != "" {
		out.Set("Authorization", auth)
	} else if authType == "anthropic" {
		if key := in.Get("x-api-key"); key != "" {
			out.Set("Authorization", "Bearer "+key)
		}
	}

	for key, values := range in {
		if strings.HasPrefix(strings.ToLower(key), "x-") {
			out[http.CanonicalHeaderKey(key)] = values
		}
	}
	return out
}

// contentLengthOK scans the body's prompt text against the character budget:
// messages[].content for the OpenAI/Anthropic shapes, contents[].parts[]
// .text for Google.
func contentLengthOK(body []byte) bool {
	total := 0

	messages := gjson.GetBytes(body, "messages")
	if messages.IsArray() {
		for _, msg := range messages.Array() {
			total += len(msg.Get("content").String())
		}
	}

	if total == 0 {
		for _, content := range gjson.GetBytes(body, "contents").Array() {
			for _, part := range content.Get("parts").Array() {
				total += len(part.Get("text").String())
			}
		}
	}
	return total <= maxContentChars
}

// isStreamRequest reports whether the request asks for a streamed response:
// stream=true in the body, or a Google streamGenerateContent path.
func isStreamRequest(body []byte, path, authType string) bool {
	if gjson.GetBytes(body, "stream").Bool() {
		return true
	}
	return authType == "google" && strings.Contains(path, "streamGenerateContent")
}
