package coze

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Workflow parameter names expected by the face workflows.
const (
	ParamImage         = "image"
	ParamSecondImage   = "image2"
	ParamTemplateImage = "template"
)

// SyncResult is what a synchronous run produced, after at most one polling
// fallback.
type SyncResult struct {
	ExecutionID  string
	WorkflowID   string
	ResultURLs   []string
	Output       any
	Polled       bool
	ErrorMessage string
}

// InvokeAsync starts a workflow without waiting for it. Non-zero codes and a
// missing execute_id are errors.
func (c *Client) InvokeAsync(ctx context.Context, workflowID string, params map[string]any) (*WorkflowExecution, error) {
	cfg := c.config.Get(ctx)
	resp, err := c.run(ctx, cfg, workflowID, params, true, c.requestTimeout)
	if err != nil {
		return nil, err
	}
	executionID := scalarString(resp.ExecuteID)
	if executionID == "" {
		return nil, fmt.Errorf("%w: workflow %s", ErrMissingExecuteID, workflowID)
	}
	return &WorkflowExecution{ExecutionID: executionID, WorkflowID: workflowID}, nil
}

// InvokeSync runs a workflow and waits for its image output. When the
// immediate reply carries no URLs but an execute_id, it polls the execution
// once for up to the swap wait budget.
func (c *Client) InvokeSync(ctx context.Context, workflowID string, params map[string]any) (*SyncResult, error) {
	return c.invokeSync(ctx, workflowID, params, nil)
}

func (c *Client) invokeSync(ctx context.Context, workflowID string, params map[string]any, progress func(int)) (*SyncResult, error) {
	cfg := c.config.Get(ctx)
	resp, err := c.run(ctx, cfg, workflowID, params, false, c.syncTimeout)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{
		ExecutionID: scalarString(resp.ExecuteID),
		WorkflowID:  workflowID,
		Output:      Normalize(resp.Data),
	}
	if swap := ParseSwapOutput(result.Output); swap.Success {
		result.ResultURLs = swap.ResultURLs
		return result, nil
	}
	if result.ExecutionID == "" {
		result.ErrorMessage = c.swapFailureMessage(result.Output)
		return result, nil
	}

	c.logger.Info().
		Str("workflow_id", workflowID).
		Str("execute_id", result.ExecutionID).
		Msg("coze: empty synchronous reply, polling execution")
	poll := c.WaitForCompletion(ctx, workflowID, result.ExecutionID, c.swapMaxWait, c.pollInterval, progress)
	result.Polled = true
	switch poll.Status {
	case StatusCompleted:
		result.Output = poll.Output
		swap := ParseSwapOutput(poll.Output)
		result.ResultURLs = swap.ResultURLs
		if !swap.Success {
			result.ErrorMessage = c.swapFailureMessage(poll.Output)
		}
	default:
		result.ErrorMessage = poll.Error
	}
	return result, nil
}

func (c *Client) swapFailureMessage(output any) string {
	if msg := c.heuristic.ExtractErrorMessage(output); msg != "" {
		return msg
	}
	return msgNoImageProduced
}

// SwapRequest describes one face swap against a template image.
type SwapRequest struct {
	UserImageURL       string
	SecondUserImageURL string
	TemplateImageURL   string
	// DoubleFace selects the two-person workflow.
	DoubleFace bool
	// Async starts the run with InvokeAsync and polls it instead of holding
	// a synchronous request open.
	Async      bool
	OnProgress func(int)
}

// SwapFace runs the single or double face workflow and reports a business
// result; transport failures become an unsuccessful result.
func (c *Client) SwapFace(ctx context.Context, req SwapRequest) *FaceSwapResult {
	cfg := c.config.Get(ctx)
	workflowID := cfg.SingleFaceWorkflowID
	if req.DoubleFace {
		workflowID = cfg.DoubleFaceWorkflowID
	}
	params := map[string]any{
		ParamImage:         strings.TrimSpace(req.UserImageURL),
		ParamTemplateImage: strings.TrimSpace(req.TemplateImageURL),
	}
	if second := strings.TrimSpace(req.SecondUserImageURL); second != "" {
		params[ParamSecondImage] = second
	}

	if req.Async {
		return c.swapAsync(ctx, workflowID, params, req.OnProgress)
	}
	res, err := c.invokeSync(ctx, workflowID, params, req.OnProgress)
	if err != nil {
		c.logger.Error().Err(err).Str("workflow_id", workflowID).Msg("coze: face swap failed")
		return &FaceSwapResult{ErrorMessage: err.Error()}
	}
	out := &FaceSwapResult{ExecutionID: res.ExecutionID, ResultURLs: res.ResultURLs}
	if len(res.ResultURLs) == 0 {
		out.ErrorMessage = res.ErrorMessage
		if out.ErrorMessage == "" {
			out.ErrorMessage = msgNoImageProduced
		}
		return out
	}
	out.Success = true
	return out
}

func (c *Client) swapAsync(ctx context.Context, workflowID string, params map[string]any, progress func(int)) *FaceSwapResult {
	exec, err := c.InvokeAsync(ctx, workflowID, params)
	if err != nil {
		c.logger.Error().Err(err).Str("workflow_id", workflowID).Msg("coze: async face swap failed")
		return &FaceSwapResult{ErrorMessage: err.Error()}
	}
	poll := c.WaitForCompletion(ctx, workflowID, exec.ExecutionID, c.swapMaxWait, c.pollInterval, progress)
	if poll.Status != StatusCompleted {
		return &FaceSwapResult{ExecutionID: exec.ExecutionID, ErrorMessage: poll.Error}
	}
	out := ParseSwapOutput(poll.Output)
	out.ExecutionID = exec.ExecutionID
	if !out.Success {
		out.ErrorMessage = c.swapFailureMessage(poll.Output)
	}
	return out
}

// AnalyzeFace classifies the face in imageURL. It trusts a valid immediate
// reply, otherwise polls the execution once; when nothing usable comes back
// it diagnoses why and returns a structured failure.
func (c *Client) AnalyzeFace(ctx context.Context, imageURL string) *FaceAnalysisResult {
	cfg := c.config.Get(ctx)
	workflowID := cfg.UserAnalyzeWorkflowID
	imageURL = strings.TrimSpace(imageURL)
	logger := c.logger.With().Str("workflow_id", workflowID).Logger()

	resp, err := c.run(ctx, cfg, workflowID, map[string]any{ParamImage: imageURL}, false, c.analyzeTimeout)
	if err != nil {
		if errors.Is(err, ErrMissingAPIKey) {
			return failedAnalysis(workflowID, "", CodeAPIKeyMissing, "coze api key is not configured", nil)
		}
		logger.Error().Err(err).Msg("coze: face analysis request failed")
		return failedAnalysis(workflowID, "", CodeAPIError, err.Error(), nil)
	}
	executionID := scalarString(resp.ExecuteID)
	normalized := Normalize(resp.Data)
	result := ParseFaceAnalysis(normalized)

	var poll *PollResult
	if !result.Valid() && executionID != "" {
		logger.Info().Str("execute_id", executionID).Msg("coze: analysis reply not usable, polling execution")
		p := c.WaitForCompletion(ctx, workflowID, executionID, c.analysisMaxWait, c.pollInterval, nil)
		poll = &p
		if p.Status == StatusCompleted {
			normalized = p.Output
			result = ParseFaceAnalysis(normalized)
		}
	}

	if result.Valid() {
		result.ExecutionID = executionID
		result.WorkflowID = workflowID
		logger.Debug().
			Str("execute_id", executionID).
			Str("face_type", result.FaceType).
			Str("gender", result.Gender).
			Str("user_type", result.UserTypeCode).
			Msg("coze: face analysed")
		return result
	}
	return c.diagnoseAnalysis(ctx, imageURL, workflowID, executionID, normalized, poll)
}

// diagnoseAnalysis builds the failure for an analysis that produced nothing.
// The remote image is probed only when the workflow gave no explicit error.
func (c *Client) diagnoseAnalysis(ctx context.Context, imageURL, workflowID, executionID string, normalized any, poll *PollResult) *FaceAnalysisResult {
	if msg := c.heuristic.ExtractErrorMessage(normalized); msg != "" {
		return failedAnalysis(workflowID, executionID, CodeWorkflowFailed, msg, normalized)
	}
	if poll != nil && poll.Status == StatusFailed && !poll.TimedOut {
		return failedAnalysis(workflowID, executionID, CodeWorkflowFailed, poll.Error, normalized)
	}

	msg := ExtractEmptyOutputReason(normalized)
	if msg == "" && poll != nil && poll.TimedOut {
		msg = poll.Error
	}
	if msg == "" {
		msg = "analysis workflow produced no result"
	}

	probe := c.ProbeRemoteURL(ctx, imageURL)
	if !probe.OK {
		c.logger.Warn().Str("image_url", imageURL).Str("probe", probe.String()).Msg("coze: analysed image is unreachable")
		return failedAnalysis(workflowID, executionID, CodeImageURLUnreachable,
			fmt.Sprintf("image url unreachable (%s); %s", probe, msg), normalized)
	}
	return failedAnalysis(workflowID, executionID, CodeEmptyOutput, msg, normalized)
}

func failedAnalysis(workflowID, executionID string, code ErrorCode, msg string, raw any) *FaceAnalysisResult {
	return &FaceAnalysisResult{
		ExecutionID:  executionID,
		WorkflowID:   workflowID,
		Raw:          raw,
		ErrorCode:    code,
		Retryable:    code.Retryable(),
		ErrorMessage: msg,
	}
}
