package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// cleanJSON strips markdown fences and surrounding prose from a model answer.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// decodeAnswer parses text into T after checking that every required key is
// present. Any mismatch wraps ErrSchemaViolation.
func decodeAnswer[T any](name, text string, required []string) (T, error) {
	var zero T
	cleaned := cleanJSON(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return zero, eris.Wrapf(ErrSchemaViolation, "%s: answer is not a JSON object: %v", name, err)
	}
	var missing []string
	for _, k := range required {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return zero, eris.Wrapf(ErrSchemaViolation, "%s: missing keys %s", name, strings.Join(missing, ", "))
	}

	var out T
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return zero, eris.Wrapf(ErrSchemaViolation, "%s: %v", name, err)
	}
	return out, nil
}

func inUnitRange(v float64) bool { return v >= 0 && v <= 1 }
