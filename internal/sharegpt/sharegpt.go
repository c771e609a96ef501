// Package sharegpt holds the extended ShareGPT conversation model and the
// normalizer that converts heterogeneous vendor messages into it.
package sharegpt

import (
	"encoding/json"
	"strings"
)

// Roles a Turn may carry.
const (
	RoleHuman        = "human"
	RoleGPT          = "gpt"
	RoleFunctionCall = "function_call"
	RoleObservation  = "observation"
	RoleSystem       = "system"
)

// Turn is one message in a conversation.
type Turn struct {
	From           string `json:"from"`
	Value          string `json:"value"`
	NormalizedRole bool   `json:"_normalized_role,omitempty"`
}

// Conversation is the persisted record shape: an ordered turn sequence plus
// the top-level system prompt and the JSON-encoded tools array.
type Conversation struct {
	Conversations []Turn   `json:"conversations"`
	System        string   `json:"system"`
	Tools         string   `json:"tools"`
	Flags         []string `json:"flags,omitempty"`
	RawRequest    string   `json:"raw_request,omitempty"`
}

// ToolCall is an assistant tool invocation in OpenAI function-call shape.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the invoked tool name and its JSON-text arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionCallOnly reports whether the conversation's externally visible
// output is tool invocations alone: the last role-bearing turn is a
// function_call. Observation turns after it do not change the answer.
func FunctionCallOnly(c Conversation) bool {
	for i := len(c.Conversations) - 1; i >= 0; i-- {
		switch c.Conversations[i].From {
		case RoleFunctionCall:
			return true
		case RoleHuman, RoleGPT, RoleSystem:
			return false
		}
	}
	return false
}

// FunctionCallOnlyJSON is FunctionCallOnly over a JSON-encoded conversation.
func FunctionCallOnlyJSON(raw string) bool {
	var c Conversation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return false
	}
	return FunctionCallOnly(c)
}

// flattenContent joins the text of an arbitrary content value. Arrays of
// content blocks contribute their text-typed parts joined by newlines;
// anything else is coerced to a string.
func flattenContent(content any) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		var parts []string
		for _, item := range c {
			if block, ok := item.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					parts = append(parts, text)
					continue
				}
				parts = append(parts, stringify(block))
				continue
			}
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, "\n")
	default:
		return stringify(c)
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
