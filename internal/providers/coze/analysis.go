package coze

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FaceAnalysisResult is the typed outcome of one face analysis call.
// Success implies at least one of FaceType, Gender or UserTypeCode is set.
type FaceAnalysisResult struct {
	Success         bool      `json:"success"`
	ExecutionID     string    `json:"execution_id,omitempty"`
	WorkflowID      string    `json:"workflow_id,omitempty"`
	FaceType        string    `json:"face_type,omitempty"`
	Gender          string    `json:"gender,omitempty"`
	UserTypeCode    string    `json:"user_type_code,omitempty"`
	Description     string    `json:"description,omitempty"`
	PackageName     string    `json:"package_name,omitempty"`
	RecommendedURLs []string  `json:"recommended_urls,omitempty"`
	Raw             any       `json:"raw_result,omitempty"`
	ErrorCode       ErrorCode `json:"error_code,omitempty"`
	Retryable       bool      `json:"retryable"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// Valid reports whether the result carries any usable classification.
func (r *FaceAnalysisResult) Valid() bool {
	if r == nil {
		return false
	}
	return r.FaceType != "" || r.Gender != "" || r.UserTypeCode != ""
}

var (
	faceTypeKeys    = []string{"face_type", "faceType", "face", "face_shape", "faceShape", "脸型"}
	genderKeys      = []string{"gender", "sex", "性别"}
	userTypeKeys    = []string{"user_type", "userType", "age_type", "ageType", "age_group", "ageGroup", "age", "用户类型", "年龄段"}
	descriptionKeys = []string{"description", "desc", "analysis", "描述"}
	packageKeys     = []string{"package_name", "packageName", "package", "套餐"}
	profileKeys     = []string{"data", "result", "profile"}
)

// analysisFields is what a shape matcher extracts from a payload.
type analysisFields struct {
	faceType    string
	gender      string
	userType    string
	description string
	packageName string
	urls        []string
}

func (f analysisFields) populated() bool {
	return f.faceType != "" || f.gender != "" || f.userType != ""
}

// shapeMatcher recognizes one known analysis payload shape.
type shapeMatcher struct {
	name  string
	match func(obj map[string]any) (analysisFields, bool)
}

// analysisShapes lists the known payload shapes in priority order.
var analysisShapes = []shapeMatcher{
	{name: "info", match: matchInfoShape},
	{name: "profile", match: matchProfileShape},
	{name: "flat", match: matchFlatShape},
}

// ParseFaceAnalysis extracts a successful result from a normalized payload.
// It returns nil when no known shape yields a face type, gender or user type.
func ParseFaceAnalysis(normalized any) *FaceAnalysisResult {
	obj, ok := normalized.(map[string]any)
	if !ok {
		return nil
	}
	for _, shape := range analysisShapes {
		fields, ok := shape.match(obj)
		if !ok || !fields.populated() {
			continue
		}
		return &FaceAnalysisResult{
			Success:         true,
			FaceType:        fields.faceType,
			Gender:          fields.gender,
			UserTypeCode:    NormalizeUserType(fields.userType),
			Description:     fields.description,
			PackageName:     fields.packageName,
			RecommendedURLs: fields.urls,
			Raw:             normalized,
		}
	}
	return nil
}

// matchInfoShape handles {info: {...}, urls: [...]}.
func matchInfoShape(obj map[string]any) (analysisFields, bool) {
	info, ok := asObject(obj["info"])
	if !ok {
		return analysisFields{}, false
	}
	fields := extractFields(info)
	fields.urls = stringList(obj["urls"])
	return fields, true
}

// matchProfileShape handles {info: {success: true, data|result|profile: {...}}}.
func matchProfileShape(obj map[string]any) (analysisFields, bool) {
	info, ok := asObject(obj["info"])
	if !ok || !truthy(info["success"]) {
		return analysisFields{}, false
	}
	for _, key := range profileKeys {
		profile, ok := asObject(info[key])
		if !ok {
			continue
		}
		fields := extractFields(profile)
		if !fields.populated() {
			continue
		}
		fields.urls = stringList(obj["urls"])
		if len(fields.urls) == 0 {
			fields.urls = stringList(profile["urls"])
		}
		return fields, true
	}
	return analysisFields{}, false
}

// matchFlatShape handles the fields sitting directly on the top level.
func matchFlatShape(obj map[string]any) (analysisFields, bool) {
	fields := extractFields(obj)
	fields.urls = stringList(obj["urls"])
	return fields, true
}

func extractFields(obj map[string]any) analysisFields {
	return analysisFields{
		faceType:    firstString(obj, faceTypeKeys),
		gender:      firstString(obj, genderKeys),
		userType:    firstString(obj, userTypeKeys),
		description: firstString(obj, descriptionKeys),
		packageName: firstString(obj, packageKeys),
	}
}

// asObject accepts an object or a string holding a JSON object.
func asObject(v any) (map[string]any, bool) {
	v = parseJSONLiteral(v)
	obj, ok := v.(map[string]any)
	return obj, ok
}

func firstString(obj map[string]any, keys []string) string {
	for _, key := range keys {
		if s := scalarString(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// scalarString renders strings and numbers; objects, arrays, bools and nil
// yield "".
func scalarString(v any) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

func stringList(v any) []string {
	v = parseJSONLiteral(v)
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			items = make([]any, len(ss))
			for i, s := range ss {
				items[i] = s
			}
		} else {
			return nil
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truthy(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "yes", "ok", "success":
			return true
		}
		return false
	case float64:
		return typed != 0
	default:
		return false
	}
}
