package sharegpt

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ToolCallMarker prefixes the inline tool-call annotation a streamed
// Anthropic response carries when visible text and tool calls coexist.
const ToolCallMarker = "[ANTHROPIC_TOOL_CALLS:"

// Input gathers everything the normalizer needs to produce a Conversation.
type Input struct {
	AuthType string
	// Messages are the archive messages extracted from the client request,
	// in request order. Content may be a string or a block array.
	Messages []map[string]any
	// Response is the assembled assistant response text, possibly carrying
	// a ToolCallMarker annotation.
	Response string
	// ToolCalls are tool invocations delivered out of band, for the
	// function-call-only case where no visible text was produced.
	ToolCalls []ToolCall
	// RawRequest is the original client request body.
	RawRequest []byte
}

// Normalize converts vendor-shaped messages plus the assembled response into
// an extended ShareGPT conversation.
func Normalize(in Input) Conversation {
	conv := Conversation{Tools: "[]"}

	system, tools := systemAndTools(in.RawRequest)
	conv.System = system
	if tools != "" {
		conv.Tools = tools
	}

	for _, msg := range in.Messages {
		appendMessage(&conv, msg)
	}

	appendResponse(&conv, in.Response, in.ToolCalls)
	normalizeRoles(&conv, in.RawRequest)
	return conv
}

// systemAndTools pulls the top-level system prompt and tools array out of
// the original request body. The system value may be a string or an array
// of text blocks; tools may be an array (serialized) or already JSON text.
func systemAndTools(rawRequest []byte) (string, string) {
	if len(rawRequest) == 0 {
		return "", ""
	}
	var system, tools string

	sys := gjson.GetBytes(rawRequest, "system")
	switch {
	case sys.Type == gjson.String:
		system = sys.String()
	case sys.IsArray():
		var parts []string
		for _, item := range sys.Array() {
			if text := item.Get("text"); text.Exists() {
				parts = append(parts, text.String())
			} else if item.Type == gjson.String {
				parts = append(parts, item.String())
			}
		}
		system = strings.Join(parts, "\n")
	}

	t := gjson.GetBytes(rawRequest, "tools")
	switch {
	case t.IsArray():
		tools = t.Raw
	case t.Type == gjson.String:
		tools = t.String()
	}
	return system, tools
}

func appendMessage(conv *Conversation, msg map[string]any) {
	role, _ := msg["role"].(string)
	content := msg["content"]

	switch role {
	case "system":
		if conv.System == "" {
			conv.System = flattenContent(content)
		}
		return
	case "tool", "function", "tool_response", "observation":
		if text := strings.TrimSpace(flattenContent(content)); text != "" {
			conv.Conversations = append(conv.Conversations, Turn{From: RoleObservation, Value: text})
		}
		return
	case "function_call":
		value := stringify(content)
		conv.Conversations = append(conv.Conversations, Turn{From: RoleFunctionCall, Value: value})
		return
	}

	// Already-normalized roles must survive a second pass unchanged.
	from := RoleGPT
	if role == "user" || role == RoleHuman {
		from = RoleHuman
	}

	text, toolCalls, toolResults := splitContentBlocks(content)
	if text != "" {
		conv.Conversations = append(conv.Conversations, Turn{From: from, Value: text})
	}

	// OpenAI-style assistant tool calls ride on the message itself.
	if calls, ok := msg["tool_calls"].([]any); ok {
		for _, call := range calls {
			conv.Conversations = append(conv.Conversations, Turn{From: RoleFunctionCall, Value: stringify(call)})
			if m, ok := call.(map[string]any); ok {
				if out, ok := m["output"].(string); ok && m["function"] != nil {
					conv.Conversations = append(conv.Conversations, Turn{From: RoleObservation, Value: out})
				}
			}
		}
	}

	for _, call := range toolCalls {
		b, _ := json.Marshal(call)
		conv.Conversations = append(conv.Conversations, Turn{From: RoleFunctionCall, Value: string(b)})
	}
	for _, result := range toolResults {
		conv.Conversations = append(conv.Conversations, Turn{From: RoleObservation, Value: result})
	}
}

// splitContentBlocks flattens an Anthropic-style block array into visible
// text, synthesized tool calls, and tool-result observations.
func splitContentBlocks(content any) (string, []ToolCall, []string) {
	blocks, ok := content.([]any)
	if !ok {
		return strings.TrimSpace(flattenContent(content)), nil, nil
	}

	var parts []string
	var calls []ToolCall
	var results []string
	for _, item := range blocks {
		block, ok := item.(map[string]any)
		if !ok {
			parts = append(parts, stringify(item))
			continue
		}
		switch block["type"] {
		case "text":
			if text, ok := block["text"].(string); ok {
				parts = append(parts, text)
			}
		case "tool_use":
			id, _ := block["id"].(string)
			name, _ := block["name"].(string)
			args := "{}"
			if input, ok := block["input"]; ok {
				args = stringify(input)
			}
			calls = append(calls, ToolCall{
				ID:       id,
				Type:     "function",
				Function: FunctionCall{Name: name, Arguments: args},
			})
		case "tool_result":
			results = append(results, flattenContent(block["content"]))
		default:
			parts = append(parts, stringify(block))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), calls, results
}

// appendResponse splices the assistant reply: an embedded tool-call marker
// is extracted first, then any remaining visible text becomes a gpt turn,
// followed by one function_call turn per tool call. A function-call-only
// reply therefore yields no gpt turn at all.
func appendResponse(conv *Conversation, response string, direct []ToolCall) {
	text := strings.TrimSpace(response)
	var calls []ToolCall

	if idx := strings.Index(text, ToolCallMarker); idx >= 0 {
		extracted, remainder, ok := extractMarker(text, idx)
		if ok {
			calls = extracted
			text = strings.TrimSpace(remainder)
		}
	}

	if text != "" {
		conv.Conversations = append(conv.Conversations, Turn{From: RoleGPT, Value: text})
	}
	for _, call := range append(calls, direct...) {
		b, _ := json.Marshal(call)
		conv.Conversations = append(conv.Conversations, Turn{From: RoleFunctionCall, Value: string(b)})
	}

	// A bare JSON response carrying OpenAI tool_calls also contributes.
	if strings.HasPrefix(text, "{") {
		if tc := gjson.Get(text, "tool_calls"); tc.IsArray() {
			for _, call := range tc.Array() {
				conv.Conversations = append(conv.Conversations, Turn{From: RoleFunctionCall, Value: call.Raw})
			}
		}
	}
}

// extractMarker pulls the JSON array out of a "[ANTHROPIC_TOOL_CALLS: …]"
// annotation using a bracket-balanced scan from the opening bracket, and
// returns the surrounding text with the marker removed.
func extractMarker(text string, start int) ([]ToolCall, string, bool) {
	jsonStart := start + len(ToolCallMarker)
	rest := text[jsonStart:]

	depth := 0
	end := -1
	for i, ch := range rest {
		switch ch {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				end = i
			} else {
				depth--
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, text, false
	}

	var calls []ToolCall
	if err := json.Unmarshal([]byte(rest[:end]), &calls); err != nil {
		return nil, text, false
	}

	remainder := text[:start] + rest[end+1:]
	return calls, remainder, true
}
