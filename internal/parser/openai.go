package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

const ssePrefix = "data: "

// parseOpenAILine handles one OpenAI SSE line: "data: {json}" chunks with a
// [DONE] terminator. Content deltas append to the visible text and
// reasoning_content deltas, in any of their shapes, to the reasoning trace.
func parseOpenAILine(line string, acc *Accumulator) {
	if !strings.HasPrefix(line, ssePrefix) {
		return
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
	if data == "" || data == "[DONE]" {
		return
	}

	chunk := gjson.Parse(data)
	if !chunk.IsObject() {
		return
	}

	if acc.ResponseID == "" {
		if id := chunk.Get("id"); id.Exists() {
			acc.ResponseID = id.String()
		}
	}

	delta := chunk.Get("choices.0.delta")
	if !delta.Exists() {
		return
	}
	if rc := delta.Get("reasoning_content"); rc.Exists() {
		acc.reasoning.WriteString(flattenReasoning(rc))
	}
	if content := delta.Get("content"); content.Type == gjson.String {
		acc.visible.WriteString(content.String())
	}
}

// parseOpenAIFinal handles a complete chat.completion body.
func parseOpenAIFinal(body []byte, acc *Accumulator) {
	root := gjson.ParseBytes(body)
	if acc.ResponseID == "" {
		acc.ResponseID = root.Get("id").String()
	}

	message := root.Get("choices.0.message")
	if !message.Exists() {
		return
	}
	if rc := message.Get("reasoning_content"); rc.Exists() {
		acc.reasoning.WriteString(flattenReasoning(rc))
	}
	if content := message.Get("content"); content.Type == gjson.String {
		acc.visible.WriteString(content.String())
	}
}

// flattenReasoning normalizes the reasoning_content field, which vendors
// ship as a plain string, an object keyed by text/content/message/parts, or
// an array of either.
func flattenReasoning(rc gjson.Result) string {
	switch {
	case rc.Type == gjson.String:
		return rc.String()
	case rc.IsArray():
		var b strings.Builder
		for _, item := range rc.Array() {
			b.WriteString(flattenReasoning(item))
		}
		return b.String()
	case rc.IsObject():
		var b strings.Builder
		for _, key := range []string{"text", "content", "message"} {
			v := rc.Get(key)
			switch {
			case v.Type == gjson.String:
				b.WriteString(v.String())
			case v.IsArray():
				for _, item := range v.Array() {
					b.WriteString(flattenReasoning(item))
				}
			}
		}
		if parts := rc.Get("parts"); parts.IsArray() {
			for _, part := range parts.Array() {
				b.WriteString(flattenReasoning(part))
			}
		}
		return b.String()
	case rc.Exists():
		return rc.String()
	default:
		return ""
	}
}
