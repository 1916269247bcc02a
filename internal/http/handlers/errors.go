package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"facestudio/internal/middleware"
)

type errorDetail struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Retryable *bool    `json:"retryable,omitempty"`
	Fields    []string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// localizedMessages translates the generic error codes; anything else keeps
// its English message.
var localizedMessages = map[string]map[string]string{
	"bad_request":  {middleware.LocaleZH: "请求参数错误"},
	"not_found":    {middleware.LocaleZH: "资源不存在"},
	"conflict":     {middleware.LocaleZH: "操作冲突"},
	"internal":     {middleware.LocaleZH: "服务器内部错误"},
	"unavailable":  {middleware.LocaleZH: "服务暂不可用"},
	"unauthorized": {middleware.LocaleZH: "未授权"},
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// errorLocalized writes an error whose message follows the request locale
// when a translation exists.
func (a *App) errorLocalized(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if translated, ok := localizedMessages[code][middleware.LocaleFromContext(r.Context())]; ok {
		message = translated
	}
	a.error(w, status, code, message)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func (a *App) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.errorLocalized(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := a.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		detail := errorDetail{Code: "validation_failed", Message: "request validation failed"}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				detail.Fields = append(detail.Fields, strings.ToLower(fe.Field())+":"+fe.Tag())
			}
		}
		a.json(w, http.StatusBadRequest, errorResponse{Error: detail})
		return false
	}
	return true
}
