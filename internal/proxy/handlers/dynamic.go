package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/capturellm/captureproxy/internal/parser"
)

// DynamicProxy forwards /{domain}/{path...} to the allow-listed domain,
// capturing the exchange on the way through.
func DynamicProxy(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domain := chi.URLParam(r, "domain")
		path := "/" + chi.URLParam(r, "*")

		if !d.Cfg.DomainAllowed(domain) {
			log.WithField("domain", domain).Warn("rejected domain outside allow-list")
			writeError(w, http.StatusForbidden, "domain "+domain+" is not allowed")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(body) > 0 && !gjson.ValidBytes(body) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !contentLengthOK(body) {
			writeError(w, http.StatusRequestEntityTooLarge, "request content exceeds the character budget")
			return
		}

		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		authType := resolveAuthType(d.Cfg, domain, path)
		vendor := parser.FromAuthType(authType)
		model := extractModel(body, path, authType)
		stream := isStreamRequest(body, path, authType)
		targetURL := d.Cfg.Scheme(domain) + "://" + domain + path

		log.WithFields(log.Fields{
			"domain": domain,
			"auth":   authType,
			"model":  model,
			"stream": stream,
		}).Info("proxying request")

		// Deliberately not the request context: a client disconnect must
		// not cancel the upstream read, the capture finishes regardless.
		resp, err := d.Client.DoWithRetry(context.Background(), r.Method, targetURL, prepareAuthHeaders(r.Header, authType), body)
		if err != nil {
			log.WithError(err).WithField("url", targetURL).Error("upstream unreachable after retries")
			writeError(w, http.StatusInternalServerError, "upstream connection failed, try again later")
			return
		}
		defer resp.Body.Close()

		if stream {
			d.streamAndCapture(w, resp, vendor, authType, model, body)
			return
		}
		d.forwardAndCapture(w, resp, vendor, authType, model, body)
	}
}
