package sharegpt

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractArchiveMessages builds the prompt-side message list from the
// original request body. Google requests fold systemInstruction into a
// leading system message and map contents[] roles; every other dialect
// passes its messages list through unchanged.
func ExtractArchiveMessages(authType string, rawRequest []byte) []map[string]any {
	if authType == "google" {
		return extractGoogleMessages(rawRequest)
	}

	var messages []map[string]any
	for _, msg := range gjson.GetBytes(rawRequest, "messages").Array() {
		var m map[string]any
		if err := json.Unmarshal([]byte(msg.Raw), &m); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages
}

func extractGoogleMessages(rawRequest []byte) []map[string]any {
	var messages []map[string]any

	var sysParts []string
	for _, part := range gjson.GetBytes(rawRequest, "systemInstruction.parts").Array() {
		if text := part.Get("text"); text.Exists() {
			sysParts = append(sysParts, text.String())
		}
	}
	if len(sysParts) > 0 {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": strings.Join(sysParts, "\n"),
		})
	}

	for _, content := range gjson.GetBytes(rawRequest, "contents").Array() {
		role := "user"
		switch content.Get("role").String() {
		case "model":
			role = "assistant"
		case "system":
			role = "system"
		}

		var textParts []string
		for _, part := range content.Get("parts").Array() {
			if text := part.Get("text"); text.Exists() {
				textParts = append(textParts, text.String())
			}
		}
		if len(textParts) == 0 {
			continue
		}
		messages = append(messages, map[string]any{
			"role":    role,
			"content": strings.Join(textParts, "\n"),
		})
	}
	return messages
}
