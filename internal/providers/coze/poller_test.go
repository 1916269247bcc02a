package coze

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   any
		want ExecutionStatus
	}{
		{in: "Success", want: StatusCompleted},
		{in: "COMPLETED", want: StatusCompleted},
		{in: "Fail", want: StatusFailed},
		{in: "cancelled", want: StatusFailed},
		{in: "Running", want: StatusRunning},
		{in: 1.0, want: StatusRunning},
		{in: 2.0, want: StatusCompleted},
		{in: 3.0, want: StatusFailed},
		{in: 2, want: StatusCompleted},
		{in: "3", want: StatusFailed},
		{in: "", want: StatusRunning},
		{in: nil, want: StatusRunning},
		{in: "queued", want: StatusRunning},
		{in: 42.0, want: StatusRunning},
	}
	for _, tc := range tests {
		if got := MapStatus(tc.in); got != tc.want {
			t.Fatalf("MapStatus(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// historyServer answers run history queries from a scripted list of entries;
// the last entry repeats once the script is exhausted.
func historyServer(t *testing.T, script []map[string]any, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/run_histories/") {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		n := int(atomic.AddInt32(hits, 1))
		entry := script[len(script)-1]
		if n <= len(script) {
			entry = script[n-1]
		}
		if entry == nil {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		writeJSON(t, w, map[string]any{"code": 0, "data": []any{entry}})
	}))
}

func TestWaitForCompletionTimesOutWithoutQueryWhenWaitShorterThanInterval(t *testing.T) {
	var hits int32
	srv := historyServer(t, []map[string]any{{"execute_status": "Success"}}, &hits)
	defer srv.Close()
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.WaitForCompletion(context.Background(), "wf", "E1", time.Second, 2*time.Second, nil)
	if !res.TimedOut || res.Status != StatusFailed {
		t.Fatalf("result = %+v, want timeout", res)
	}
	if atomic.LoadInt32(&hits) != 0 || res.Attempts != 0 {
		t.Fatalf("queries = %d attempts = %d, want none", hits, res.Attempts)
	}
}

func TestWaitForCompletionSucceedsWithProgress(t *testing.T) {
	var hits int32
	srv := historyServer(t, []map[string]any{
		{"execute_status": "Running"},
		{"execute_status": "Running"},
		{"execute_status": "Success", "output": `{"output":["https://img/1.jpg"]}`},
	}, &hits)
	defer srv.Close()
	client := newTestClient(t, srv, newFakeClock(), nil)

	var reports []int
	res := client.WaitForCompletion(context.Background(), "wf", "E1", 10*time.Second, 2*time.Second, func(p int) {
		reports = append(reports, p)
	})
	if res.Status != StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", res.Status, res.Error)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	swap := ParseSwapOutput(res.Output)
	if !swap.Success || swap.ResultURLs[0] != "https://img/1.jpg" {
		t.Fatalf("output = %v, want image url", res.Output)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Fatalf("progress = %v, want final 100", reports)
	}
	for i, p := range reports[:len(reports)-1] {
		if p > progressMax {
			t.Fatalf("progress[%d] = %d exceeds cap", i, p)
		}
		if i > 0 && p < reports[i-1] {
			t.Fatalf("progress decreased: %v", reports)
		}
	}
}

func TestWaitForCompletionTimesOutWhileRunning(t *testing.T) {
	var hits int32
	srv := historyServer(t, []map[string]any{{"execute_status": "Running"}}, &hits)
	defer srv.Close()
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.WaitForCompletion(context.Background(), "wf", "E1", 6*time.Second, 2*time.Second, nil)
	if !res.TimedOut {
		t.Fatalf("result = %+v, want timeout", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestWaitForCompletionReportsFailure(t *testing.T) {
	var hits int32
	srv := historyServer(t, []map[string]any{{"execute_status": "Fail", "error_message": "no face detected"}}, &hits)
	defer srv.Close()
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.WaitForCompletion(context.Background(), "wf", "E1", 10*time.Second, 2*time.Second, nil)
	if res.Status != StatusFailed || res.TimedOut {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.Error != "no face detected" {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestWaitForCompletionKeepsPollingAfterQueryError(t *testing.T) {
	var hits int32
	srv := historyServer(t, []map[string]any{
		nil,
		{"execute_status": 2.0, "output": map[string]any{"output": []any{"https://img/2.jpg"}}},
	}, &hits)
	defer srv.Close()
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.WaitForCompletion(context.Background(), "wf", "E1", 10*time.Second, 2*time.Second, nil)
	if res.Status != StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", res.Status, res.Error)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("queries = %d, want 2", hits)
	}
}

func TestWaitForCompletionStopsOnCancel(t *testing.T) {
	var hits int32
	srv := historyServer(t, []map[string]any{{"execute_status": "Running"}}, &hits)
	defer srv.Close()
	client := newTestClient(t, srv, newFakeClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := client.WaitForCompletion(ctx, "wf", "E1", 10*time.Second, 2*time.Second, nil)
	if res.Status != StatusFailed || res.TimedOut {
		t.Fatalf("result = %+v, want aborted failure", res)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("queries = %d, want 0", hits)
	}
}
