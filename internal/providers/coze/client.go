package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"facestudio/internal/infra"
)

const (
	defaultBaseURL         = "https://api.coze.cn/v1"
	defaultRequestTimeout  = 30 * time.Second
	defaultSyncTimeout     = 150 * time.Second
	defaultAnalyzeTimeout  = 60 * time.Second
	defaultPollInterval    = 2 * time.Second
	defaultAnalysisMaxWait = 60 * time.Second
	defaultSwapMaxWait     = 180 * time.Second
)

// Options configures the Coze workflow client.
type Options struct {
	BaseURL string
	Config  *ConfigCache
	// HTTPClient is used for workflow calls and, when set, for URL probes.
	HTTPClient *http.Client
	// RequestTimeout bounds async runs and status queries.
	RequestTimeout time.Duration
	// SyncTimeout bounds a synchronous face swap run.
	SyncTimeout time.Duration
	// AnalyzeTimeout bounds a synchronous analysis run.
	AnalyzeTimeout  time.Duration
	ProbeTimeout    time.Duration
	PollInterval    time.Duration
	AnalysisMaxWait time.Duration
	SwapMaxWait     time.Duration
	Heuristic       *ErrorHeuristic
	Logger          *infra.Logger
	Now             func() time.Time
	Sleep           func(ctx context.Context, d time.Duration) error
}

// Client invokes Coze workflows and turns their replies into typed results.
type Client struct {
	baseURL         string
	config          *ConfigCache
	httpClient      *http.Client
	probeClient     *http.Client
	requestTimeout  time.Duration
	syncTimeout     time.Duration
	analyzeTimeout  time.Duration
	probeTimeout    time.Duration
	pollInterval    time.Duration
	analysisMaxWait time.Duration
	swapMaxWait     time.Duration
	heuristic       ErrorHeuristic
	logger          *infra.Logger
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration) error
}

// WorkflowExecution identifies one remote run.
type WorkflowExecution struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

type runRequest struct {
	WorkflowID string         `json:"workflow_id"`
	Parameters map[string]any `json:"parameters"`
	BotID      string         `json:"bot_id,omitempty"`
	IsAsync    bool           `json:"is_async,omitempty"`
}

type runResponse struct {
	Code      any    `json:"code"`
	Msg       string `json:"msg"`
	ExecuteID any    `json:"execute_id"`
	Data      any    `json:"data"`
	DebugURL  string `json:"debug_url"`
}

type historyResponse struct {
	Code any    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// runHistory is the raw state of one execution as reported by the service.
type runHistory struct {
	status any
	output any
	errMsg string
}

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("coze: invalid base url: %w", err)
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	cache := opts.Config
	if cache == nil {
		cache = NewConfigCache(ConfigCacheOptions{Logger: logger})
	}
	heuristic := NewErrorHeuristic()
	if opts.Heuristic != nil {
		heuristic = *opts.Heuristic
	}
	c := &Client{
		baseURL:         baseURL,
		config:          cache,
		httpClient:      opts.HTTPClient,
		probeClient:     opts.HTTPClient,
		requestTimeout:  durationOr(opts.RequestTimeout, defaultRequestTimeout),
		syncTimeout:     durationOr(opts.SyncTimeout, defaultSyncTimeout),
		analyzeTimeout:  durationOr(opts.AnalyzeTimeout, defaultAnalyzeTimeout),
		probeTimeout:    durationOr(opts.ProbeTimeout, defaultProbeTimeout),
		pollInterval:    durationOr(opts.PollInterval, defaultPollInterval),
		analysisMaxWait: durationOr(opts.AnalysisMaxWait, defaultAnalysisMaxWait),
		swapMaxWait:     durationOr(opts.SwapMaxWait, defaultSwapMaxWait),
		heuristic:       heuristic,
		logger:          logger,
		now:             opts.Now,
		sleep:           opts.Sleep,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.probeClient == nil {
		c.probeClient = &http.Client{Timeout: c.probeTimeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c, nil
}

// Config exposes the cache so operators can invalidate it after edits.
func (c *Client) Config() *ConfigCache {
	return c.config
}

// run posts one /workflow/run request and enforces the response contract.
func (c *Client) run(ctx context.Context, cfg ConfigEntry, workflowID string, params map[string]any, async bool, timeout time.Duration) (*runResponse, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(workflowID) == "" {
		return nil, errors.New("coze: workflow id is required")
	}
	if params == nil {
		params = map[string]any{}
	}
	payload := runRequest{
		WorkflowID: workflowID,
		Parameters: params,
		BotID:      cfg.BotID,
		IsAsync:    async,
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var decoded runResponse
	if err := c.doJSON(ctx, cfg.APIKey, http.MethodPost, "/workflow/run", payload, &decoded); err != nil {
		return nil, err
	}
	if code, ok := responseCode(decoded.Code); !ok || code != 0 {
		return nil, fmt.Errorf("%w: workflow %s: code %v: %s", ErrAPI, workflowID, decoded.Code, decoded.Msg)
	}
	c.logger.Debug().
		Str("workflow_id", workflowID).
		Str("execute_id", scalarString(decoded.ExecuteID)).
		Bool("async", async).
		Msg("coze: workflow run accepted")
	return &decoded, nil
}

// history fetches the latest run history entry of one execution.
func (c *Client) history(ctx context.Context, cfg ConfigEntry, workflowID, executionID string) (*runHistory, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	path := fmt.Sprintf("/workflows/%s/run_histories/%s", url.PathEscape(workflowID), url.PathEscape(executionID))
	var decoded historyResponse
	if err := c.doJSON(ctx, cfg.APIKey, http.MethodGet, path, nil, &decoded); err != nil {
		return nil, err
	}
	if code, ok := responseCode(decoded.Code); !ok || code != 0 {
		return nil, fmt.Errorf("%w: run history %s: code %v: %s", ErrAPI, executionID, decoded.Code, decoded.Msg)
	}
	entry := firstHistoryEntry(decoded.Data)
	if entry == nil {
		return &runHistory{}, nil
	}
	status := entry["execute_status"]
	if status == nil {
		status = entry["status"]
	}
	errMsg := errorText(entry["error_message"])
	if errMsg == "" {
		errMsg = errorText(entry["error"])
	}
	return &runHistory{status: status, output: entry["output"], errMsg: errMsg}, nil
}

func (c *Client) doJSON(ctx context.Context, apiKey, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("coze: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("coze: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coze: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coze: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("coze: decode response: %w", err)
	}
	return nil
}

// responseCode reads a code that may arrive as a number or a numeric string.
// A missing code counts as success.
func responseCode(v any) (int, bool) {
	switch typed := v.(type) {
	case nil:
		return 0, true
	case float64:
		return int(typed), true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, true
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func firstHistoryEntry(data any) map[string]any {
	data = parseJSONLiteral(data)
	switch typed := data.(type) {
	case []any:
		for _, item := range typed {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	case map[string]any:
		return typed
	}
	return nil
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
