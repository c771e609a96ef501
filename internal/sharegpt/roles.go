package sharegpt

import "strings"

// looksLikeAssistant guesses whether a turn recorded as human is actually
// assistant output: long prose, markdown cues, or text with almost no
// question marks relative to its length.
func looksLikeAssistant(value string) bool {
	if len(value) >= 400 {
		return true
	}
	if strings.Contains(value, "###") || strings.Contains(value, "**") || strings.Contains(value, "<think>") {
		return true
	}
	if len(value) == 0 {
		return false
	}
	questions := strings.Count(value, "?")
	return float64(questions)/float64(len(value)) < 0.002
}

// normalizeRoles relabels the second of two consecutive human turns as gpt
// when it looks like assistant output. Every rewrite is marked on the turn,
// flagged on the conversation, and the raw request body is retained so the
// rewrite stays auditable.
func normalizeRoles(conv *Conversation, rawRequest []byte) {
	rewritten := false
	for i := 1; i < len(conv.Conversations); i++ {
		prev := &conv.Conversations[i-1]
		cur := &conv.Conversations[i]
		if prev.From != RoleHuman || cur.From != RoleHuman {
			continue
		}
		if !looksLikeAssistant(cur.Value) {
			continue
		}
		cur.From = RoleGPT
		cur.NormalizedRole = true
		rewritten = true
	}
	if rewritten {
		conv.Flags = append(conv.Flags, "normalized_roles")
		conv.RawRequest = string(rawRequest)
	}
}
