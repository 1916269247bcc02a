package coze

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultProbeTimeout = 2500 * time.Millisecond

// ProbeResult describes whether a remote URL answered with 2xx/3xx.
type ProbeResult struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Method string `json:"method,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (p ProbeResult) String() string {
	if p.OK {
		return fmt.Sprintf("%s %d", p.Method, p.Status)
	}
	if p.Error != "" {
		return fmt.Sprintf("%s failed: %s", p.Method, p.Error)
	}
	return fmt.Sprintf("%s status %d", p.Method, p.Status)
}

// ProbeRemoteURL checks whether rawURL is publicly reachable. It sends HEAD
// and falls back to a one byte ranged GET when the server rejects HEAD.
// Redirects are followed by the http.Client.
func (c *Client) ProbeRemoteURL(ctx context.Context, rawURL string) ProbeResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ProbeResult{Error: "empty url"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	head := c.probeOnce(ctx, http.MethodHead, rawURL)
	if head.OK || !headRejected(head) {
		return head
	}
	return c.probeOnce(ctx, http.MethodGet, rawURL)
}

func (c *Client) probeOnce(ctx context.Context, method, rawURL string) ProbeResult {
	result := ProbeResult{Method: method}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	result.Status = resp.StatusCode
	result.OK = resp.StatusCode >= 200 && resp.StatusCode < 400
	return result
}

// headRejected reports whether a failed HEAD deserves a GET retry: some
// object stores answer HEAD with 403/405/501 while serving GET fine.
func headRejected(r ProbeResult) bool {
	switch r.Status {
	case http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return false
}
