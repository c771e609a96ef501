package parser

import (
	"encoding/json"
	"strings"

	"github.com/capturellm/captureproxy/internal/sharegpt"
	"github.com/tidwall/gjson"
)

// parseAnthropicLine handles one Anthropic messages-stream event. Tool_use
// blocks are assembled across content_block_start / _delta / _stop into
// completed tool calls; text deltas append to the visible text.
func parseAnthropicLine(line string, acc *Accumulator) {
	if !strings.HasPrefix(line, ssePrefix) {
		return
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
	if data == "" || data == "[DONE]" {
		return
	}

	event := gjson.Parse(data)
	switch event.Get("type").String() {
	case "message_start":
		if acc.ResponseID == "" {
			acc.ResponseID = event.Get("message.id").String()
		}

	case "content_block_start":
		block := event.Get("content_block")
		if block.Get("type").String() == "tool_use" {
			acc.pending = &pendingToolCall{
				id:   block.Get("id").String(),
				name: block.Get("name").String(),
			}
		}

	case "content_block_delta":
		delta := event.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			acc.visible.WriteString(delta.Get("text").String())
		case "input_json_delta":
			if acc.pending != nil {
				acc.pending.inputJSON.WriteString(delta.Get("partial_json").String())
			}
		}

	case "content_block_stop":
		if acc.pending != nil {
			acc.ToolCalls = append(acc.ToolCalls, acc.pending.complete())
			acc.pending = nil
		}

	case "message_delta":
		if reason := event.Get("delta.stop_reason"); reason.Exists() {
			acc.StopReason = reason.String()
		}
	}
}

// complete finalizes a pending tool call. The accumulated input is kept as
// JSON text when it parses; an unparseable buffer is preserved raw.
func (p *pendingToolCall) complete() sharegpt.ToolCall {
	args := p.inputJSON.String()
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return sharegpt.ToolCall{
		ID:       p.id,
		Type:     "function",
		Function: sharegpt.FunctionCall{Name: p.name, Arguments: args},
	}
}

// parseAnthropicFinal handles a complete non-streaming messages body:
// text-typed content blocks concatenate into the visible text.
func parseAnthropicFinal(body []byte, acc *Accumulator) {
	root := gjson.ParseBytes(body)
	if acc.ResponseID == "" {
		acc.ResponseID = root.Get("id").String()
	}
	for _, block := range root.Get("content").Array() {
		if block.Get("type").String() == "text" {
			acc.visible.WriteString(block.Get("text").String())
		}
	}
	if reason := root.Get("stop_reason"); reason.Exists() {
		acc.StopReason = reason.String()
	}
}

func marshalToolCalls(calls []sharegpt.ToolCall) string {
	b, err := json.Marshal(calls)
	if err != nil {
		return "[]"
	}
	return string(b)
}
