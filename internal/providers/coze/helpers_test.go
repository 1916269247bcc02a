package coze

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when the client sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func envWith(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func newTestClient(t *testing.T, srv *httptest.Server, clock *fakeClock, env map[string]string) *Client {
	t.Helper()
	if env == nil {
		env = map[string]string{"COZE_API_KEY": "test-key"}
	}
	cache := NewConfigCache(ConfigCacheOptions{Getenv: envWith(env), Now: clock.Now})
	opts := Options{
		Config:          cache,
		PollInterval:    2 * time.Second,
		AnalysisMaxWait: 10 * time.Second,
		SwapMaxWait:     10 * time.Second,
		Now:             clock.Now,
		Sleep:           clock.Sleep,
	}
	if srv != nil {
		opts.BaseURL = srv.URL
		opts.HTTPClient = srv.Client()
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}
