package coze

import (
	"encoding/json"
	"strings"
)

// maxNormalizeSteps bounds how many wrapping layers Normalize peels off.
const maxNormalizeSteps = 6

// nestedKeys are the wrapper fields the remote service is known to nest the
// real payload under, in lookup order.
var nestedKeys = []string{"output", "Output", "result", "data", "json"}

// Normalize collapses stringified JSON, singleton arrays and output/result/
// data/json wrappers into the innermost payload. It stops early at an object
// that already looks like a terminal analysis or swap payload, so sibling
// fields such as urls are never discarded by descending into a sub-field.
func Normalize(raw any) any {
	current := raw
	for step := 0; step < maxNormalizeSteps; step++ {
		current = parseJSONLiteral(current)

		if list, ok := current.([]any); ok {
			if len(list) == 1 {
				current = list[0]
				continue
			}
			return current
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return current
		}
		obj = expandOutputList(obj)
		if isTerminalObject(obj) {
			return obj
		}
		next, ok := nestedPayload(obj)
		if !ok {
			return obj
		}
		current = next
	}
	return parseJSONLiteral(current)
}

// parseJSONLiteral decodes v when it is a string holding a JSON object or
// array; anything else is returned unchanged.
func parseJSONLiteral(v any) any {
	s, ok := v.(string)
	if !ok || !isJSONLiteral(s) {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &decoded); err != nil {
		return v
	}
	return decoded
}

func isJSONLiteral(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}
	return (s[0] == '{' && s[len(s)-1] == '}') || (s[0] == '[' && s[len(s)-1] == ']')
}

func isTerminalObject(obj map[string]any) bool {
	if _, ok := obj["info"]; ok {
		return true
	}
	if _, ok := obj["urls"]; ok {
		return true
	}
	if hasAnyKey(obj, faceTypeKeys) || hasAnyKey(obj, genderKeys) || hasAnyKey(obj, userTypeKeys) {
		return true
	}
	if out, ok := obj["output"]; ok && isPlainStringList(out) {
		return true
	}
	return false
}

// expandOutputList decodes an output field holding a stringified list of
// plain strings, e.g. "[\"https://img/1.jpg\"]", so the object is kept as the
// terminal swap payload instead of being unwrapped to its URLs. obj itself is
// not modified.
func expandOutputList(obj map[string]any) map[string]any {
	raw, ok := obj["output"].(string)
	if !ok {
		return obj
	}
	decoded := parseJSONLiteral(raw)
	if !isPlainStringList(decoded) {
		return obj
	}
	expanded := make(map[string]any, len(obj))
	for k, v := range obj {
		expanded[k] = v
	}
	expanded["output"] = decoded
	return expanded
}

// nestedPayload returns the first wrapper field worth descending into. Plain
// scalars are skipped: descending into "data": "ok" would lose the object.
func nestedPayload(obj map[string]any) (any, bool) {
	for _, key := range nestedKeys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		switch typed := v.(type) {
		case map[string]any:
			if len(typed) == 0 {
				continue
			}
			return typed, true
		case []any:
			if len(typed) == 0 {
				continue
			}
			return typed, true
		case string:
			if isJSONLiteral(typed) {
				return typed, true
			}
		}
	}
	return nil, false
}

// isPlainStringList reports whether v is a JSON array made only of strings
// that are not themselves JSON documents, e.g. a list of image URLs.
func isPlainStringList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		s, ok := item.(string)
		if !ok || isJSONLiteral(s) {
			return false
		}
	}
	return true
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	for _, key := range keys {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}
