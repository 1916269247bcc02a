package coze

import (
	"fmt"
	"strings"
)

var errorMessageKeys = []string{
	"errorMessage",
	"error_message",
	"errorMsg",
	"error_msg",
	"err_msg",
	"error",
	"msg",
	"message",
	"reason",
}

// ExtractErrorMessage finds a human readable error in a normalized payload.
// It checks the top level, then info, then info.data. A candidate counts only
// when a failure flag sits next to it or the text itself reads like an error.
func (h ErrorHeuristic) ExtractErrorMessage(normalized any) string {
	obj, ok := normalized.(map[string]any)
	if !ok {
		if s := scalarString(normalized); s != "" && h.LooksLikeError(s) {
			return s
		}
		return ""
	}
	scopes := []map[string]any{obj}
	if info, ok := asObject(obj["info"]); ok {
		scopes = append(scopes, info)
		if data, ok := asObject(info["data"]); ok {
			scopes = append(scopes, data)
		}
	}
	for _, scope := range scopes {
		if msg := h.errorInScope(scope); msg != "" {
			return msg
		}
	}
	return ""
}

func (h ErrorHeuristic) errorInScope(scope map[string]any) string {
	failed := hasFailureFlag(scope)
	for _, key := range errorMessageKeys {
		candidate := errorText(scope[key])
		if candidate == "" {
			continue
		}
		if failed || h.LooksLikeError(candidate) {
			return candidate
		}
	}
	return ""
}

// errorText accepts a plain string or a nested {message|msg} object.
func errorText(v any) string {
	if s := scalarString(v); s != "" {
		return s
	}
	if obj, ok := v.(map[string]any); ok {
		for _, key := range []string{"message", "msg", "detail"} {
			if s := scalarString(obj[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func hasFailureFlag(scope map[string]any) bool {
	for _, key := range []string{"success", "ok"} {
		if v, ok := scope[key]; ok && v != nil && !truthy(v) {
			return true
		}
	}
	status := strings.ToLower(scalarString(scope["status"]))
	return strings.Contains(status, "fail") || strings.Contains(status, "error")
}

// ExtractEmptyOutputReason explains the {info: null, urls: [...]} shape the
// analysis workflow returns when it could not read the image. It returns ""
// for any other payload.
func ExtractEmptyOutputReason(normalized any) string {
	obj, ok := normalized.(map[string]any)
	if !ok {
		return ""
	}
	info, hasInfo := obj["info"]
	if !hasInfo || info != nil {
		return ""
	}
	rawURLs, hasURLs := obj["urls"]
	if !hasURLs {
		return "analysis workflow returned no data (info=null)"
	}
	urls, _ := parseJSONLiteral(rawURLs).([]any)
	msg := fmt.Sprintf("analysis workflow returned no data (info=null, urls=%d)", len(urls))
	if first := stringList(urls); len(first) > 0 {
		msg += ", first url: " + first[0]
	}
	return msg
}
