package parser

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	googleTextShard = regexp.MustCompile(`"text":\s*"([^"]*)"`)
	googleIDShard   = regexp.MustCompile(`"responseId":\s*"([^"]*)"`)
)

// parseGoogleLine handles one chunk of a Gemini stream. Chunks arrive as
// bare JSON objects, as "data:"-framed SSE, or as OpenAI-style delta
// envelopes; incomplete JSON shards fall back to regex field capture.
func parseGoogleLine(line string, acc *Accumulator) {
	data := strings.TrimSpace(line)
	if strings.HasPrefix(data, ssePrefix) {
		data = strings.TrimSpace(strings.TrimPrefix(data, ssePrefix))
	}
	if data == "" || data == "[DONE]" {
		return
	}
	switch data {
	case "{", "}", "[", "]", ",":
		return
	}

	if strings.HasPrefix(data, "{") && strings.HasSuffix(data, "}") {
		chunk := gjson.Parse(data)
		if chunk.IsObject() {
			parseGoogleChunk(chunk, acc)
			return
		}
	}
	parseGoogleShard(data, acc)
}

func parseGoogleChunk(chunk gjson.Result, acc *Accumulator) {
	if acc.ResponseID == "" {
		if id := chunk.Get("responseId"); id.Exists() {
			acc.ResponseID = id.String()
		}
	}

	// OpenAI-compatible envelopes show up when an intermediary re-frames
	// the stream.
	if delta := chunk.Get("choices.0.delta.content"); delta.Type == gjson.String {
		acc.visible.WriteString(delta.String())
		return
	}

	for _, part := range chunk.Get("candidates.0.content.parts").Array() {
		classifyGooglePart(part, acc)
	}
}

// classifyGooglePart routes one content part to either the reasoning trace
// or the visible text. Structured thinking ({thinking:{thought:"…"}}) wins
// over the legacy thought:true marker.
func classifyGooglePart(part gjson.Result, acc *Accumulator) {
	if thought := part.Get("thinking.thought"); thought.Type == gjson.String && thought.String() != "" {
		acc.reasoning.WriteString(thought.String())
		return
	}
	if part.Get("thought").Type == gjson.True {
		if text := part.Get("text"); text.Type == gjson.String && text.String() != "" {
			acc.reasoning.WriteString(text.String())
		}
		return
	}
	if text := part.Get("text"); text.Type == gjson.String {
		acc.visible.WriteString(text.String())
	}
}

// parseGoogleShard recovers fields from a streaming shard that is not a
// complete JSON object. Text capture is skipped when the shard carries a
// thinking marker, so reasoning never leaks into the visible answer.
func parseGoogleShard(data string, acc *Accumulator) {
	if strings.Contains(data, `"text":`) &&
		!strings.Contains(data, `"thought": true`) &&
		!strings.Contains(data, `"thinking"`) {
		if m := googleTextShard.FindStringSubmatch(data); m != nil {
			acc.visible.WriteString(m[1])
		}
	}
	if acc.ResponseID == "" && strings.Contains(data, `"responseId":`) {
		if m := googleIDShard.FindStringSubmatch(data); m != nil {
			acc.ResponseID = m[1]
		}
	}
}

// parseGoogleFinal handles a complete generateContent body. An abnormal
// finishReason replaces the visible text with a human-readable explanation.
func parseGoogleFinal(body []byte, acc *Accumulator) {
	root := gjson.ParseBytes(body)
	if acc.ResponseID == "" {
		acc.ResponseID = root.Get("responseId").String()
	}

	candidate := root.Get("candidates.0")
	if !candidate.Exists() {
		return
	}

	if reason := candidate.Get("finishReason").String(); reason != "" && reason != "STOP" {
		acc.StopReason = reason
		acc.visible.WriteString(finishReasonMessage(reason))
		return
	}

	var parts []string
	var thoughts []string
	for _, part := range candidate.Get("content.parts").Array() {
		if thought := part.Get("thinking.thought"); thought.Type == gjson.String && thought.String() != "" {
			thoughts = append(thoughts, thought.String())
			continue
		}
		if part.Get("thought").Type == gjson.True {
			if text := part.Get("text"); text.Type == gjson.String && text.String() != "" {
				thoughts = append(thoughts, text.String())
			}
			continue
		}
		if text := part.Get("text"); text.Type == gjson.String {
			parts = append(parts, text.String())
		}
	}
	acc.visible.WriteString(strings.Join(parts, "\n"))
	if len(thoughts) > 0 {
		acc.reasoning.WriteString(strings.TrimSpace(strings.Join(thoughts, "\n")))
	}
}

func finishReasonMessage(reason string) string {
	switch reason {
	case "MAX_TOKENS":
		return "response truncated: maximum output token limit reached; reduce the input or raise maxOutputTokens"
	case "SAFETY":
		return "response blocked by the safety filter"
	case "RECITATION":
		return "response blocked: recitation of source material detected"
	default:
		return "generation stopped: " + reason
	}
}
