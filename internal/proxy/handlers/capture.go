package handlers

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/parser"
	"github.com/capturellm/captureproxy/internal/sharegpt"
	"github.com/capturellm/captureproxy/internal/store"
)

// streamAndCapture relays an SSE response byte-for-byte while feeding a
// trimmed copy of each line to the vendor parser. A failed client write
// stops relaying but never stops parsing: the capture still completes from
// whatever upstream delivers.
func (d *Deps) streamAndCapture(w http.ResponseWriter, resp *http.Response, vendor parser.Vendor, authType, model string, rawRequest []byte) {
	// Echo the upstream Content-Type: an error reply to a stream-requested
	// exchange arrives as plain JSON, not as an event stream.
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/event-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(resp.StatusCode)
	flusher, _ := w.(http.Flusher)

	acc := &parser.Accumulator{}
	reader := bufio.NewReader(resp.Body)
	writing := true

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if writing {
				if _, werr := w.Write(line); werr != nil {
					log.WithError(werr).Info("client disconnected, continuing capture")
					writing = false
				} else if flusher != nil {
					flusher.Flush()
				}
			}
			if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
				vendor.ParseIncremental(trimmed, acc)
			}
		}
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Warn("upstream stream read error")
			}
			break
		}
	}

	// A stream is only worth persisting once upstream identified it.
	if acc.ResponseID == "" || !acc.HasContent() {
		return
	}
	d.persist(acc, acc.ResponseID, authType, model, rawRequest)
}

// forwardAndCapture relays a complete response verbatim, then parses the
// body for persistence. Responses with no parsable content (error bodies,
// embeddings) are forwarded untouched and not recorded.
func (d *Deps) forwardAndCapture(w http.ResponseWriter, resp *http.Response, vendor parser.Vendor, authType, model string, rawRequest []byte) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("reading upstream response")
		writeError(w, http.StatusBadGateway, "failed to read upstream response")
		return
	}
	if resp.StatusCode >= 400 {
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"model":  model,
		}).Warn("forwarding upstream error response")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(body)

	acc := &parser.Accumulator{}
	vendor.ParseFinal(body, acc)
	if !acc.HasContent() {
		return
	}

	id := acc.ResponseID
	if id == "" {
		id = uuid.New().String()
	}
	d.persist(acc, id, authType, model, rawRequest)
}

// persist normalizes the accumulated response against the original request
// and hands the record to the batch writer.
func (d *Deps) persist(acc *parser.Accumulator, id, authType, model string, rawRequest []byte) {
	conv := sharegpt.Normalize(sharegpt.Input{
		AuthType:   authType,
		Messages:   sharegpt.ExtractArchiveMessages(authType, rawRequest),
		Response:   acc.FinalText(),
		ToolCalls:  acc.DirectToolCalls(),
		RawRequest: rawRequest,
	})

	encoded, err := json.Marshal(conv)
	if err != nil {
		log.WithError(err).WithField("id", id).Error("encoding conversation")
		return
	}
	d.Writer.Enqueue(store.Interaction{
		ID:           id,
		Model:        model,
		Conversation: string(encoded),
	})
}
