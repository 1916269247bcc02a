package coze

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

// cozeServer fakes /workflow/run and the run history endpoint.
type cozeServer struct {
	t        *testing.T
	run      map[string]any
	history  map[string]any
	lastRun  runRequest
	authSeen string
	runs     int32
	polls    int32
}

func (s *cozeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.authSeen = r.Header.Get("Authorization")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/workflow/run":
		atomic.AddInt32(&s.runs, 1)
		if err := json.NewDecoder(r.Body).Decode(&s.lastRun); err != nil {
			s.t.Errorf("decode run request: %v", err)
		}
		writeJSON(s.t, w, s.run)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/run_histories/"):
		atomic.AddInt32(&s.polls, 1)
		if s.history == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(s.t, w, s.history)
	default:
		s.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func newCozeServer(t *testing.T, run, history map[string]any) (*cozeServer, *httptest.Server) {
	t.Helper()
	fake := &cozeServer{t: t, run: run, history: history}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv
}

func TestInvokeAsync(t *testing.T) {
	fake, srv := newCozeServer(t, map[string]any{"code": 0, "execute_id": "E9"}, nil)
	client := newTestClient(t, srv, newFakeClock(), nil)

	exec, err := client.InvokeAsync(context.Background(), "wf-1", map[string]any{ParamImage: "https://u/1.jpg"})
	if err != nil {
		t.Fatalf("invoke async: %v", err)
	}
	if exec.ExecutionID != "E9" || exec.WorkflowID != "wf-1" {
		t.Fatalf("execution = %+v", exec)
	}
	if !fake.lastRun.IsAsync || fake.lastRun.WorkflowID != "wf-1" || fake.lastRun.BotID != defaultBotID {
		t.Fatalf("request = %+v", fake.lastRun)
	}
	if fake.authSeen != "Bearer test-key" {
		t.Fatalf("authorization = %q", fake.authSeen)
	}
}

func TestInvokeAsyncErrors(t *testing.T) {
	tests := []struct {
		name    string
		run     map[string]any
		wantErr error
	}{
		{name: "non-zero code", run: map[string]any{"code": 4100, "msg": "token invalid"}, wantErr: ErrAPI},
		{name: "string code", run: map[string]any{"code": "4100", "msg": "token invalid"}, wantErr: ErrAPI},
		{name: "missing execute_id", run: map[string]any{"code": 0}, wantErr: ErrMissingExecuteID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newCozeServer(t, tc.run, nil)
			client := newTestClient(t, srv, newFakeClock(), nil)
			_, err := client.InvokeAsync(context.Background(), "wf-1", nil)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestInvokeRequiresAPIKey(t *testing.T) {
	fake, srv := newCozeServer(t, map[string]any{"code": 0, "execute_id": "E1"}, nil)
	client := newTestClient(t, srv, newFakeClock(), map[string]string{})

	if _, err := client.InvokeAsync(context.Background(), "wf-1", nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if atomic.LoadInt32(&fake.runs) != 0 {
		t.Fatalf("runs = %d, want no request", fake.runs)
	}
}

func TestInvokeSyncFallsBackToPolling(t *testing.T) {
	fake, srv := newCozeServer(t,
		map[string]any{"code": 0, "execute_id": "E1", "data": `{"output":[]}`},
		map[string]any{"code": 0, "data": []any{map[string]any{
			"execute_status": "Success",
			"output":         `{"output":["https://img/1.jpg"]}`,
		}}},
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res, err := client.InvokeSync(context.Background(), "wf-swap", map[string]any{ParamImage: "https://u/1.jpg"})
	if err != nil {
		t.Fatalf("invoke sync: %v", err)
	}
	if !res.Polled || res.ExecutionID != "E1" {
		t.Fatalf("result = %+v, want polled E1", res)
	}
	if !reflect.DeepEqual(res.ResultURLs, []string{"https://img/1.jpg"}) {
		t.Fatalf("urls = %v", res.ResultURLs)
	}
	if fake.lastRun.IsAsync {
		t.Fatalf("sync run sent is_async")
	}
	if atomic.LoadInt32(&fake.polls) != 1 {
		t.Fatalf("polls = %d, want 1", fake.polls)
	}
}

func TestInvokeSyncImmediateOutputSkipsPolling(t *testing.T) {
	fake, srv := newCozeServer(t,
		map[string]any{"code": 0, "execute_id": "E2", "data": `{"output":["https://img/2.jpg"]}`},
		nil,
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res, err := client.InvokeSync(context.Background(), "wf-swap", nil)
	if err != nil {
		t.Fatalf("invoke sync: %v", err)
	}
	if res.Polled || len(res.ResultURLs) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if atomic.LoadInt32(&fake.polls) != 0 {
		t.Fatalf("polls = %d, want 0", fake.polls)
	}
}

func TestSwapFaceSelectsWorkflow(t *testing.T) {
	fake, srv := newCozeServer(t,
		map[string]any{"code": 0, "execute_id": "E3", "data": map[string]any{"output": []any{"https://img/3.jpg"}}},
		nil,
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.SwapFace(context.Background(), SwapRequest{
		UserImageURL:       " https://u/a.jpg ",
		SecondUserImageURL: "https://u/b.jpg",
		TemplateImageURL:   "https://t/couple.jpg",
		DoubleFace:         true,
	})
	if !res.Success || res.ExecutionID != "E3" {
		t.Fatalf("result = %+v", res)
	}
	if fake.lastRun.WorkflowID != defaultDoubleFaceWorkflow {
		t.Fatalf("workflow = %q, want double face", fake.lastRun.WorkflowID)
	}
	want := map[string]any{
		ParamImage:         "https://u/a.jpg",
		ParamSecondImage:   "https://u/b.jpg",
		ParamTemplateImage: "https://t/couple.jpg",
	}
	if !reflect.DeepEqual(fake.lastRun.Parameters, want) {
		t.Fatalf("parameters = %v, want %v", fake.lastRun.Parameters, want)
	}
}

func TestSwapFaceAsyncPolls(t *testing.T) {
	fake, srv := newCozeServer(t,
		map[string]any{"code": 0, "execute_id": "E4"},
		map[string]any{"code": 0, "data": []any{map[string]any{
			"execute_status": "Success",
			"output":         map[string]any{"output": []any{"https://img/4.jpg"}},
		}}},
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	var last int
	res := client.SwapFace(context.Background(), SwapRequest{
		UserImageURL:     "https://u/a.jpg",
		TemplateImageURL: "https://t/single.jpg",
		Async:            true,
		OnProgress:       func(p int) { last = p },
	})
	if !res.Success || res.ResultURLs[0] != "https://img/4.jpg" {
		t.Fatalf("result = %+v", res)
	}
	if !fake.lastRun.IsAsync || fake.lastRun.WorkflowID != defaultSingleFaceWorkflow {
		t.Fatalf("request = %+v", fake.lastRun)
	}
	if last != 100 {
		t.Fatalf("last progress = %d, want 100", last)
	}
}

func TestSwapFaceReportsWorkflowError(t *testing.T) {
	_, srv := newCozeServer(t,
		map[string]any{"code": 0, "data": `{"success":false,"msg":"template has no face"}`},
		nil,
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.SwapFace(context.Background(), SwapRequest{UserImageURL: "https://u/a.jpg", TemplateImageURL: "https://t/x.jpg"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.ErrorMessage != "template has no face" {
		t.Fatalf("error = %q", res.ErrorMessage)
	}
}

func TestAnalyzeFaceImmediateResult(t *testing.T) {
	payload := mustJSON(t, map[string]any{
		"info": map[string]any{"face_type": "宽脸", "gender": "女", "user_type": "青年"},
		"urls": []any{"https://t/1.jpg"},
	})
	fake, srv := newCozeServer(t,
		map[string]any{"code": 0, "execute_id": "A1", "data": mustJSON(t, map[string]any{"output": payload})},
		nil,
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.AnalyzeFace(context.Background(), "https://u/me.jpg")
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.FaceType != "宽脸" || res.Gender != "女" || res.UserTypeCode != UserTypeYouth {
		t.Fatalf("fields = %+v", res)
	}
	if res.ExecutionID != "A1" || res.WorkflowID != defaultUserAnalyzeFlow {
		t.Fatalf("ids = %q %q", res.ExecutionID, res.WorkflowID)
	}
	if fake.lastRun.Parameters[ParamImage] != "https://u/me.jpg" {
		t.Fatalf("parameters = %v", fake.lastRun.Parameters)
	}
	if atomic.LoadInt32(&fake.polls) != 0 {
		t.Fatalf("polls = %d, want 0", fake.polls)
	}
}

func TestAnalyzeFaceEmptyOutputDiagnostics(t *testing.T) {
	tests := []struct {
		name       string
		imageCode  int
		wantCode   ErrorCode
		wantRetry  bool
		wantPrefix string
	}{
		{name: "reachable image", imageCode: http.StatusOK, wantCode: CodeEmptyOutput, wantRetry: true},
		{name: "unreachable image", imageCode: http.StatusNotFound, wantCode: CodeImageURLUnreachable, wantRetry: false, wantPrefix: "image url unreachable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.imageCode)
			}))
			defer images.Close()
			_, srv := newCozeServer(t, map[string]any{"code": 0, "data": `{"info":null,"urls":[]}`}, nil)
			client := newTestClient(t, srv, newFakeClock(), nil)

			res := client.AnalyzeFace(context.Background(), images.URL+"/me.jpg")
			if res.Success {
				t.Fatalf("expected failure, got %+v", res)
			}
			if res.ErrorCode != tc.wantCode || res.Retryable != tc.wantRetry {
				t.Fatalf("code = %s retryable = %v, want %s %v", res.ErrorCode, res.Retryable, tc.wantCode, tc.wantRetry)
			}
			if !strings.Contains(res.ErrorMessage, "info=null, urls=0") {
				t.Fatalf("message = %q", res.ErrorMessage)
			}
			if !strings.HasPrefix(res.ErrorMessage, tc.wantPrefix) {
				t.Fatalf("message = %q, want prefix %q", res.ErrorMessage, tc.wantPrefix)
			}
		})
	}
}

func TestAnalyzeFaceWorkflowErrorSkipsProbe(t *testing.T) {
	var probes int32
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&probes, 1)
	}))
	defer images.Close()
	_, srv := newCozeServer(t, map[string]any{"code": 0, "data": `{"info":{"success":false,"error":"图片解析失败"}}`}, nil)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.AnalyzeFace(context.Background(), images.URL+"/me.jpg")
	if res.ErrorCode != CodeWorkflowFailed || !res.Retryable {
		t.Fatalf("result = %+v", res)
	}
	if res.ErrorMessage != "图片解析失败" {
		t.Fatalf("message = %q", res.ErrorMessage)
	}
	if atomic.LoadInt32(&probes) != 0 {
		t.Fatalf("probes = %d, want 0", probes)
	}
}

func TestAnalyzeFacePollsWhenReplyUnusable(t *testing.T) {
	_, srv := newCozeServer(t,
		map[string]any{"code": 0, "execute_id": "A2", "data": ""},
		map[string]any{"code": 0, "data": []any{map[string]any{
			"execute_status": "Success",
			"output":         `{"output":"{\"info\":{\"gender\":\"male\",\"age\":\"老人\"}}"}`,
		}}},
	)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.AnalyzeFace(context.Background(), "https://u/me.jpg")
	if !res.Success || res.Gender != "male" || res.UserTypeCode != UserTypeSenior {
		t.Fatalf("result = %+v", res)
	}
}

func TestAnalyzeFaceMissingAPIKey(t *testing.T) {
	fake, srv := newCozeServer(t, map[string]any{"code": 0}, nil)
	client := newTestClient(t, srv, newFakeClock(), map[string]string{})

	res := client.AnalyzeFace(context.Background(), "https://u/me.jpg")
	if res.ErrorCode != CodeAPIKeyMissing || res.Retryable {
		t.Fatalf("result = %+v", res)
	}
	if atomic.LoadInt32(&fake.runs) != 0 {
		t.Fatalf("runs = %d, want 0", fake.runs)
	}
}

func TestAnalyzeFaceAPIError(t *testing.T) {
	_, srv := newCozeServer(t, map[string]any{"code": 700012, "msg": "workflow not published"}, nil)
	client := newTestClient(t, srv, newFakeClock(), nil)

	res := client.AnalyzeFace(context.Background(), "https://u/me.jpg")
	if res.ErrorCode != CodeAPIError || !res.Retryable {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.ErrorMessage, "workflow not published") {
		t.Fatalf("message = %q", res.ErrorMessage)
	}
}
