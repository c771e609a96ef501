package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/capturellm/captureproxy/internal/parser"
)

// fixedEntryTimeout bounds the whole fixed-entry exchange; the dynamic proxy
// has a much longer budget for streaming sessions.
const fixedEntryTimeout = 120 * time.Second

// OpenAIEntry serves the fixed /v1/chat/completions, /v1/completions and
// /v1/embeddings endpoints against the configured default upstream. When
// that upstream speaks the Google dialect, the OpenAI request body is
// rewritten to Gemini contents/parts form.
func OpenAIEntry(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if !gjson.ValidBytes(body) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !contentLengthOK(body) {
			writeError(w, http.StatusRequestEntityTooLarge, "request content exceeds the character budget")
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer Authorization header")
			return
		}

		domain := d.Cfg.DefaultUpstream
		path := r.URL.Path
		authType := resolveAuthType(d.Cfg, domain, path)
		model := gjson.GetBytes(body, "model").String()
		stream := gjson.GetBytes(body, "stream").Bool()
		forwardBody := body

		if authType == "google" {
			if model == "" {
				model = "gemini-2.0-flash-exp"
			}
			if stream {
				path = "/v1beta/models/" + model + ":streamGenerateContent"
			} else {
				path = "/v1beta/models/" + model + ":generateContent"
			}
			forwardBody = rewriteOpenAIToGemini(body)
		}

		targetURL := d.Cfg.Scheme(domain) + "://" + domain + path

		log.WithFields(log.Fields{
			"upstream": domain,
			"auth":     authType,
			"model":    model,
			"stream":   stream,
		}).Info("fixed entry request")

		ctx, cancel := context.WithTimeout(context.Background(), fixedEntryTimeout)
		defer cancel()

		resp, err := d.Client.DoWithRetry(ctx, http.MethodPost, targetURL, prepareAuthHeaders(r.Header, authType), forwardBody)
		if err != nil {
			log.WithError(err).WithField("url", targetURL).Error("upstream unreachable after retries")
			writeError(w, http.StatusInternalServerError, "upstream connection failed, try again later")
			return
		}
		defer resp.Body.Close()

		// Capture against the body actually sent upstream, so the archived
		// prompt matches the dialect the response answers.
		vendor := parser.FromAuthType(authType)
		if stream || strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
			d.streamAndCapture(w, resp, vendor, authType, model, forwardBody)
			return
		}
		d.forwardAndCapture(w, resp, vendor, authType, model, forwardBody)
	}
}

// rewriteOpenAIToGemini converts an OpenAI chat body to Gemini form: each
// message becomes a contents entry, system prompts become a user part with a
// "System: " prefix, and generationConfig is filled from the sampling
// parameters.
func rewriteOpenAIToGemini(body []byte) []byte {
	type geminiPart struct {
		Text string `json:"text"`
	}
	type geminiContent struct {
		Role  string       `json:"role"`
		Parts []geminiPart `json:"parts"`
	}

	var contents []geminiContent
	for _, msg := range gjson.GetBytes(body, "messages").Array() {
		content := msg.Get("content").String()
		switch msg.Get("role").String() {
		case "system":
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: "System: " + content}},
			})
		case "assistant":
			contents = append(contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: content}},
			})
		default:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: content}},
			})
		}
	}

	temperature := 0.7
	if t := gjson.GetBytes(body, "temperature"); t.Exists() {
		temperature = t.Float()
	}
	maxTokens := int64(2048)
	if t := gjson.GetBytes(body, "max_tokens"); t.Exists() {
		maxTokens = t.Int()
	}
	topP := 1.0
	if t := gjson.GetBytes(body, "top_p"); t.Exists() {
		topP = t.Float()
	}

	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "contents", contents)
	out, _ = sjson.SetBytes(out, "generationConfig.temperature", temperature)
	out, _ = sjson.SetBytes(out, "generationConfig.maxOutputTokens", maxTokens)
	out, _ = sjson.SetBytes(out, "generationConfig.topP", topP)
	return out
}
