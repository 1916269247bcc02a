package coze

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExecutionStatus is the normalized state of a remote execution.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// MapStatus folds the service's string and numeric status representations
// onto ExecutionStatus. Unknown values are treated as still running.
func MapStatus(raw any) ExecutionStatus {
	switch typed := raw.(type) {
	case float64:
		return statusFromCode(int(typed))
	case int:
		return statusFromCode(typed)
	case string:
		s := strings.ToLower(strings.TrimSpace(typed))
		switch {
		case strings.Contains(s, "fail"), strings.Contains(s, "cancel"):
			return StatusFailed
		case strings.Contains(s, "success"), strings.Contains(s, "complete"):
			return StatusCompleted
		}
		if code, ok := responseCode(s); ok && s != "" {
			return statusFromCode(code)
		}
	}
	return StatusRunning
}

func statusFromCode(code int) ExecutionStatus {
	switch code {
	case 2:
		return StatusCompleted
	case 3:
		return StatusFailed
	default:
		return StatusRunning
	}
}

// PollResult is the terminal outcome of WaitForCompletion.
type PollResult struct {
	Status   ExecutionStatus
	Output   any
	Error    string
	TimedOut bool
	Attempts int
}

// progressMax caps the running estimate until the execution completes.
const progressMax = 95

type progressReporter struct {
	report func(int)
	last   int
}

func (p *progressReporter) update(elapsed, maxWait time.Duration) {
	if p.report == nil || maxWait <= 0 {
		return
	}
	estimate := int(elapsed * 100 / maxWait)
	if estimate > progressMax {
		estimate = progressMax
	}
	if estimate <= p.last {
		return
	}
	p.last = estimate
	p.report(estimate)
}

func (p *progressReporter) done() {
	if p.report == nil {
		return
	}
	p.last = 100
	p.report(100)
}

// WaitForCompletion polls the run history of an execution every interval
// until it completes, fails, or maxWait elapses. A maxWait shorter than one
// interval times out without querying. Status query errors are logged and the
// loop keeps polling. progress, when non-nil, receives a non-decreasing
// estimate in [0, 95] and finally 100 on completion.
func (c *Client) WaitForCompletion(ctx context.Context, workflowID, executionID string, maxWait, interval time.Duration, progress func(int)) PollResult {
	if interval <= 0 {
		interval = c.pollInterval
	}
	cfg := c.config.Get(ctx)
	reporter := &progressReporter{report: progress}
	start := c.now()
	logger := c.logger.With().Str("workflow_id", workflowID).Str("execute_id", executionID).Logger()

	attempts := 0
	for {
		elapsed := c.now().Sub(start)
		if elapsed+interval > maxWait {
			logger.Warn().Int("attempts", attempts).Dur("max_wait", maxWait).Msg("coze: polling timed out")
			return PollResult{
				Status:   StatusFailed,
				Error:    fmt.Sprintf("workflow execution %s timed out after %s", executionID, maxWait),
				TimedOut: true,
				Attempts: attempts,
			}
		}
		if err := c.sleep(ctx, interval); err != nil {
			return PollResult{Status: StatusFailed, Error: fmt.Sprintf("polling aborted: %v", err), Attempts: attempts}
		}
		reporter.update(c.now().Sub(start), maxWait)

		attempts++
		h, err := c.history(ctx, cfg, workflowID, executionID)
		if err != nil {
			if ctx.Err() != nil {
				return PollResult{Status: StatusFailed, Error: fmt.Sprintf("polling aborted: %v", ctx.Err()), Attempts: attempts}
			}
			logger.Warn().Err(err).Int("attempt", attempts).Msg("coze: status query failed")
			continue
		}

		switch MapStatus(h.status) {
		case StatusCompleted:
			reporter.done()
			logger.Debug().Int("attempts", attempts).Msg("coze: execution completed")
			return PollResult{Status: StatusCompleted, Output: Normalize(h.output), Attempts: attempts}
		case StatusFailed:
			msg := h.errMsg
			if msg == "" {
				msg = c.heuristic.ExtractErrorMessage(Normalize(h.output))
			}
			if msg == "" {
				msg = "workflow execution failed"
			}
			logger.Warn().Str("error", msg).Int("attempts", attempts).Msg("coze: execution failed")
			return PollResult{Status: StatusFailed, Error: msg, Attempts: attempts}
		}
	}
}
