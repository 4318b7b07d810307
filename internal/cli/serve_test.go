package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/cache"
	aerrors "github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/observability"
	"github.com/matzehuels/afcplot/pkg/pipeline"
	"github.com/matzehuels/afcplot/pkg/plot"
)

type recordingServerHooks struct {
	mu        sync.Mutex
	requests  []string
	responses []int
}

func (h *recordingServerHooks) OnRequest(_ context.Context, id, method, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, id+" "+method+" "+path)
}

func (h *recordingServerHooks) OnResponse(_ context.Context, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, status)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	isolate(t)
	plot.SetMode(plot.ModeInteractive)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(fc, nil, logger)
	srv := newServer(sampleTrials(t), runner, logger)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestServeHealthAndIndex(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, ts.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(`href="/figures/psych?animal=M1"`)) {
		t.Errorf("index lacks figure links: %s", body)
	}
}

func TestServeAnimals(t *testing.T) {
	ts := newTestServer(t)
	resp, body := get(t, ts.URL+"/api/animals", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var animals []AnimalSummary
	if err := json.Unmarshal(body, &animals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(animals) != 2 || animals[0].Name != "M2" || animals[0].Trials != 120 {
		t.Errorf("animals = %+v", animals)
	}
}

func TestServeFigure(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/api/figures/psych?animal=M1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if resp.Header.Get("X-Cache") != "MISS" {
		t.Errorf("first request X-Cache = %q", resp.Header.Get("X-Cache"))
	}
	var fig map[string]any
	if err := json.Unmarshal(body, &fig); err != nil {
		t.Fatalf("figure is not JSON: %v", err)
	}
	if _, ok := fig["data"]; !ok {
		t.Error("figure JSON has no data")
	}

	resp, _ = get(t, ts.URL+"/api/figures/psych?animal=M1", nil)
	if resp.Header.Get("X-Cache") != "HIT" {
		t.Errorf("second request X-Cache = %q", resp.Header.Get("X-Cache"))
	}

	resp, body = get(t, ts.URL+"/figures/trialrate?animal=M2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("page status = %d: %s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") || !bytes.Contains(body, []byte("<html")) {
		t.Errorf("page is not HTML: %s", resp.Header.Get("Content-Type"))
	}
}

func TestServeErrors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/api/figures/bars", http.StatusBadRequest, "INVALID_INPUT"},
		{"/api/figures/psych?animal=M9", http.StatusNotFound, "NOT_FOUND"},
		{"/api/figures/psych?format=png", http.StatusBadRequest, "INVALID_FORMAT"},
		{"/api/figures/performance", http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path, nil)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var e errorBody
			if err := json.Unmarshal(body, &e); err != nil {
				t.Fatalf("error body: %v", err)
			}
			if e.Code != tt.code || e.Error == "" {
				t.Errorf("error = %+v, want code %s", e, tt.code)
			}
		})
	}
}

func TestWriteErrorHidesCallerBugs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
		level  string
	}{
		{"usage order", aerrors.New(aerrors.ErrCodeUsageOrder, "Legend before Draw"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", "ERRO"},
		{"secondary axis", aerrors.New(aerrors.ErrCodeSecondaryAxis, "secondary y-axis already exists"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", "ERRO"},
		{"user error", aerrors.New(aerrors.ErrCodeNotFound, "no trials for M9"), http.StatusNotFound, "NOT_FOUND", "no trials for M9", "WARN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			rec := httptest.NewRecorder()
			writeError(rec, log.New(&logs), tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var e errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
				t.Fatalf("error body: %v", err)
			}
			if e.Code != tt.code || e.Error != tt.msg {
				t.Errorf("body = %+v, want %s %q", e, tt.code, tt.msg)
			}
			if !strings.Contains(logs.String(), tt.level) {
				t.Errorf("log = %q, want level %s", logs.String(), tt.level)
			}
		})
	}
}

func TestServeRequestID(t *testing.T) {
	hooks := &recordingServerHooks{}
	observability.SetServerHooks(hooks)
	t.Cleanup(observability.Reset)
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/healthz", http.Header{"X-Request-Id": {"req-42"}})
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Errorf("echoed request ID = %q", got)
	}
	resp, _ = get(t, ts.URL+"/missing", nil)
	if len(resp.Header.Get("X-Request-ID")) != 36 {
		t.Errorf("generated request ID = %q, want a UUID", resp.Header.Get("X-Request-ID"))
	}

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.requests) != 2 || hooks.requests[0] != "req-42 GET /healthz" {
		t.Errorf("requests = %v", hooks.requests)
	}
	if len(hooks.responses) != 2 || hooks.responses[0] != http.StatusOK || hooks.responses[1] != http.StatusNotFound {
		t.Errorf("responses = %v", hooks.responses)
	}
}
