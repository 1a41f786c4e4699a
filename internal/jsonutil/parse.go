// Package jsonutil recovers a JSON object embedded in free-form model output.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrNoObject = errors.New("no JSON object found")

// ExtractObject returns the substring from the first '{' to the last '}'.
// Models routinely wrap their JSON in prose or code fences, so anything outside
// that span is ignored rather than rejected.
func ExtractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoObject
	}
	return text[start : end+1], nil
}

// StringFields extracts the embedded object and returns its string-valued
// fields. Every key in required must be present and hold a JSON string.
func StringFields(text string, required ...string) (map[string]string, error) {
	obj, err := ExtractObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w (raw length: %d)", err, len(text))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(obj))
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
		}
	}

	for _, k := range required {
		if _, ok := raw[k]; !ok {
			return nil, fmt.Errorf("missing required field %q", k)
		}
		if _, ok := out[k]; !ok {
			return nil, fmt.Errorf("field %q is not a string", k)
		}
	}
	return out, nil
}

func preview(s string) string {
	n := 200
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
