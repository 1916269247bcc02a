package coze

import (
	"errors"
	"strings"
)

var (
	// ErrMissingAPIKey indicates that no API key is configured in the store, the
	// environment or the defaults.
	ErrMissingAPIKey = errors.New("coze: api key is required")
	// ErrAPI wraps every failure reported by the remote service itself
	// (non-2xx HTTP status or a non-zero response code).
	ErrAPI = errors.New("coze: api error")
	// ErrMissingExecuteID is returned when a run reported success without an
	// execute_id.
	ErrMissingExecuteID = errors.New("coze: missing execute_id")
)

// ErrorCode classifies business failures surfaced to callers.
type ErrorCode string

const (
	CodeAPIKeyMissing       ErrorCode = "COZE_API_KEY_MISSING"
	CodeImageURLUnreachable ErrorCode = "IMAGE_URL_UNREACHABLE"
	CodeWorkflowFailed      ErrorCode = "COZE_WORKFLOW_FAILED"
	CodeEmptyOutput         ErrorCode = "COZE_EMPTY_OUTPUT"
	CodeAPIError            ErrorCode = "COZE_API_ERROR"
)

// Retryable reports whether asking the user to try again can help.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeAPIKeyMissing, CodeImageURLUnreachable:
		return false
	case CodeWorkflowFailed, CodeEmptyOutput, CodeAPIError:
		return true
	default:
		return false
	}
}

// DefaultErrorTokens are substrings that mark free text as an error report.
// Chinese entries cover failed, error, expired, empty, restricted, timeout,
// invalid and abnormal.
var DefaultErrorTokens = []string{
	"fail",
	"error",
	"invalid",
	"timeout",
	"timed out",
	"denied",
	"expired",
	"unreachable",
	"失败",
	"错误",
	"过期",
	"为空",
	"受限",
	"超时",
	"无效",
	"异常",
}

// ErrorHeuristic decides whether free text reads like an error message.
type ErrorHeuristic struct {
	Tokens []string
}

// NewErrorHeuristic returns a heuristic over tokens, or over
// DefaultErrorTokens when none are given.
func NewErrorHeuristic(tokens ...string) ErrorHeuristic {
	if len(tokens) == 0 {
		tokens = DefaultErrorTokens
	}
	normalized := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" {
			normalized = append(normalized, token)
		}
	}
	return ErrorHeuristic{Tokens: normalized}
}

// LooksLikeError reports whether text contains any configured token.
func (h ErrorHeuristic) LooksLikeError(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	for _, token := range h.Tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
