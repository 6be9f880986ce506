package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stampworks/previewd/pkg/errors"
	"github.com/stampworks/previewd/pkg/httputil"
)

func TestRenderURLSendsPayload(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte("fake-png-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", nil)
	out, err := c.RenderURL(context.Background(), "https://content.test/s/abc", RenderOptions{
		Delay: SimpleDelay,
	})
	if err != nil {
		t.Fatalf("RenderURL() error: %v", err)
	}
	if string(out) != "fake-png-bytes" {
		t.Errorf("output = %q", out)
	}

	if got.URL != "https://content.test/s/abc" {
		t.Errorf("payload URL = %q", got.URL)
	}
	if got.HTML != "" {
		t.Error("URL mode must not set HTML")
	}
	if got.Delay != SimpleDelay.Milliseconds() {
		t.Errorf("payload delay = %d", got.Delay)
	}
	if got.Timeout != DefaultTimeout.Milliseconds() {
		t.Errorf("payload timeout = %d, want default", got.Timeout)
	}
	if got.Viewport.Width != 1200 || got.Viewport.Height != 1200 {
		t.Errorf("viewport = %+v, want 1200x1200", got.Viewport)
	}
}

func TestRenderHTMLSendsMarkup(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	if _, err := c.RenderHTML(context.Background(), "<h1>hi</h1>", RenderOptions{}); err != nil {
		t.Fatalf("RenderHTML() error: %v", err)
	}
	if got.HTML != "<h1>hi</h1>" {
		t.Errorf("payload HTML = %q", got.HTML)
	}
	if got.URL != "" {
		t.Error("HTML mode must not set URL")
	}
}

func TestDoClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		code      errors.Code
	}{
		{"server error", http.StatusBadGateway, true, errors.ErrCodeNetwork},
		{"service unavailable", http.StatusServiceUnavailable, true, errors.ErrCodeNetwork},
		{"bad request", http.StatusBadRequest, false, errors.ErrCodeRender},
		{"unauthorized", http.StatusUnauthorized, false, errors.ErrCodeRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(srv.URL, "", nil)
			_, err := c.do(context.Background(), []byte("{}"))
			if err == nil {
				t.Fatal("expected error")
			}
			if httputil.IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", httputil.IsRetryable(err), tt.retryable)
			}
			if errors.GetCode(err) != tt.code {
				t.Errorf("code = %q, want %q", errors.GetCode(err), tt.code)
			}
		})
	}
}

func TestDoAbortIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "", nil)
	_, err := c.do(ctx, []byte("{}"))
	if err == nil {
		t.Fatal("expected error")
	}
	if httputil.IsRetryable(err) {
		t.Error("an aborted call must not be retried")
	}
	if errors.GetCode(err) != errors.ErrCodeTimeout {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeTimeout)
	}
}

func TestDoUnreachableIsRetryable(t *testing.T) {
	c := New("http://127.0.0.1:1", "", nil)
	_, err := c.do(context.Background(), []byte("{}"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !httputil.IsRetryable(err) {
		t.Error("a transport failure should be retryable")
	}
	if errors.GetCode(err) != errors.ErrCodeNetwork {
		t.Errorf("code = %q", errors.GetCode(err))
	}
}

func TestRenderMarkupIframeTarget(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(make([]byte, MinValidOutput))
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.RenderMarkup(context.Background(), MarkupParams{
		HTML:         `<iframe src="/s/target"></iframe>`,
		PageURL:      "https://content.test/s/wrapper",
		IframeTarget: "https://content.test/s/target",
	})
	if err != nil {
		t.Fatalf("RenderMarkup() error: %v", err)
	}
	if got.URL != "https://content.test/s/target" {
		t.Errorf("should navigate to the frame target, got URL %q", got.URL)
	}
}

func TestRenderMarkupRecursiveUsesURLMode(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(make([]byte, MinValidOutput))
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.RenderMarkup(context.Background(), MarkupParams{
		HTML:      "<html>recursive</html>",
		PageURL:   "https://content.test/s/abc",
		Recursive: true,
	})
	if err != nil {
		t.Fatalf("RenderMarkup() error: %v", err)
	}
	if got.URL != "https://content.test/s/abc" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.Delay != ComplexDelay.Milliseconds() {
		t.Errorf("delay = %d, want extended", got.Delay)
	}
	if got.Timeout != ComplexTimeout.Milliseconds() {
		t.Errorf("timeout = %d, want extended", got.Timeout)
	}
}

func TestRenderMarkupStripsLoaderScripts(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(make([]byte, MinValidOutput))
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	html := `<html><script src="/loader.js"></script><body>hi</body></html>`
	_, err := c.RenderMarkup(context.Background(), MarkupParams{HTML: html})
	if err != nil {
		t.Fatalf("RenderMarkup() error: %v", err)
	}
	if strings.Contains(got.HTML, "loader.js") {
		t.Errorf("loader script should be stripped, got %q", got.HTML)
	}
	if !strings.Contains(got.HTML, "<body>hi</body>") {
		t.Errorf("body should survive, got %q", got.HTML)
	}
}

func TestRenderMarkupBlankInlineRetriesViaURL(t *testing.T) {
	var urls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		urls = append(urls, req.URL)
		if req.URL == "" {
			// Inline render yields an undersized screenshot.
			w.Write([]byte("tiny"))
			return
		}
		w.Write(make([]byte, MinValidOutput))
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	out, err := c.RenderMarkup(context.Background(), MarkupParams{
		HTML:    "<html>static</html>",
		PageURL: "https://content.test/s/abc",
	})
	if err != nil {
		t.Fatalf("RenderMarkup() error: %v", err)
	}
	if len(out) < MinValidOutput {
		t.Errorf("final output still undersized: %d bytes", len(out))
	}
	if len(urls) != 2 || urls[0] != "" || urls[1] != "https://content.test/s/abc" {
		t.Errorf("call sequence = %v, want inline then url navigation", urls)
	}
}
