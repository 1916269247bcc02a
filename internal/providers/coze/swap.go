package coze

// FaceSwapResult is the typed outcome of one face swap.
type FaceSwapResult struct {
	Success      bool     `json:"success"`
	ExecutionID  string   `json:"execution_id,omitempty"`
	ResultURLs   []string `json:"result_urls,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

const msgNoImageProduced = "no image produced"

// ParseSwapOutput reads the output image URLs from a normalized swap payload.
// Anything but a non-empty output list of strings is a failure.
func ParseSwapOutput(normalized any) *FaceSwapResult {
	obj, ok := normalized.(map[string]any)
	if !ok {
		return &FaceSwapResult{ErrorMessage: msgNoImageProduced}
	}
	urls := stringList(obj["output"])
	if len(urls) == 0 {
		return &FaceSwapResult{ErrorMessage: msgNoImageProduced}
	}
	return &FaceSwapResult{Success: true, ResultURLs: urls}
}
