package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyCompletion = errors.New("model returned an empty completion")

// ExtractCandidates turns a model completion into raw candidates. It strips
// Markdown code fences and accepts a JSON array, an object wrapping the array
// under "questions", or a single question object.
func ExtractCandidates(completion string) ([]json.RawMessage, error) {
	content := stripFences(completion)
	if content == "" {
		return nil, ErrEmptyCompletion
	}

	raw := []byte(content)
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode question array: %w", err)
		}
		return items, nil
	case '{':
		var wrapper struct {
			Questions []json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Questions != nil {
			return wrapper.Questions, nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("failed to decode question object")
		}
		return []json.RawMessage{json.RawMessage(bytes.Clone(raw))}, nil
	default:
		return nil, fmt.Errorf("completion is not JSON: %.40q", content)
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
