package store

import (
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL streams conversations as one JSON object per line, oldest
// first. Rows that fail validation are written verbatim to invalid instead
// (when non-nil) and counted separately.
func (s *Store) ExportJSONL(valid, invalid io.Writer, confirmed bool) (validCount, invalidCount int, err error) {
	var conversations []string
	if confirmed {
		err = s.db.Model(&ConfirmedInteraction{}).
			Order("original_timestamp").
			Pluck("conversation", &conversations).Error
	} else {
		err = s.db.Model(&Interaction{}).
			Order("timestamp").
			Pluck("conversation", &conversations).Error
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read conversations: %w", err)
	}

	for _, raw := range conversations {
		line, vErr := validateConversation(raw)
		if vErr != nil {
			invalidCount++
			if invalid != nil {
				if _, err := io.WriteString(invalid, raw+"\n"); err != nil {
					return validCount, invalidCount, err
				}
			}
			continue
		}
		if _, err := valid.Write(append(line, '\n')); err != nil {
			return validCount, invalidCount, err
		}
		validCount++
	}
	return validCount, invalidCount, nil
}

// validateConversation checks the ShareGPT shape of one stored conversation
// and returns its re-encoded form. A tools array is serialized to JSON text
// so every exported record carries tools as a string.
func validateConversation(raw string) ([]byte, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}

	turns, ok := data["conversations"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing or non-list conversations field")
	}
	for i, item := range turns {
		turn, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("turn %d is not an object", i)
		}
		if _, ok := turn["from"]; !ok {
			return nil, fmt.Errorf("turn %d missing from", i)
		}
		if _, ok := turn["value"]; !ok {
			return nil, fmt.Errorf("turn %d missing value", i)
		}
	}

	if _, ok := data["system"].(string); !ok {
		return nil, fmt.Errorf("missing or non-string system field")
	}

	switch tools := data["tools"].(type) {
	case string:
		if !json.Valid([]byte(tools)) {
			return nil, fmt.Errorf("tools string is not valid JSON")
		}
	case []any:
		b, err := json.Marshal(tools)
		if err != nil {
			return nil, fmt.Errorf("serialize tools: %w", err)
		}
		data["tools"] = string(b)
	default:
		return nil, fmt.Errorf("missing or mistyped tools field")
	}

	return json.Marshal(data)
}
