package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the first balanced JSON object in a reply that may wrap
// it in prose or a markdown code fence.
func ExtractJSON(reply string) (string, error) {
	start := strings.IndexByte(reply, '{')
	for start >= 0 {
		if obj, ok := balancedObject(reply[start:]); ok && json.Valid([]byte(obj)) {
			return obj, nil
		}
		next := strings.IndexByte(reply[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", fmt.Errorf("no JSON object in reply")
}

func balancedObject(s string) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONReply extracts the JSON object from reply and decodes it into T.
func ParseJSONReply[T any](reply string) (T, error) {
	var out T
	obj, err := ExtractJSON(reply)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode JSON reply: %w", err)
	}
	return out, nil
}
