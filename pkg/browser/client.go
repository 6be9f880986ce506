// Package browser delegates rendering to an external headless-browser
// screenshot service.
//
// Markup, script-driven pages, video first-frames, and raster subtypes the
// pixel decoder cannot parse all end up here. The client classifies
// failures into retryable (5xx, transient network) and terminal (4xx,
// caller-side aborts) and applies the pipeline's standard 2s/4s backoff to
// the retryable class. A request-level abort already represents the
// caller's own timeout budget being exhausted, so it is never retried.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stampworks/previewd/pkg/errors"
	"github.com/stampworks/previewd/pkg/httputil"
)

// Timing policy for remote renders.
const (
	// DefaultTimeout bounds a standard remote render.
	DefaultTimeout = 30 * time.Second

	// ComplexTimeout bounds renders of complex or recursive content.
	ComplexTimeout = 45 * time.Second

	// SimpleDelay is the post-load delay for simple static content.
	SimpleDelay = 3 * time.Second

	// ComplexDelay is the post-load delay for content that paints after
	// load (canvas, animation frames, async fetches).
	ComplexDelay = 8 * time.Second

	// MinValidOutput is the heuristic threshold below which a screenshot
	// is assumed to be a blank or failed paint.
	MinValidOutput = 5000

	// retryAttempts is the total number of attempts per remote call.
	retryAttempts = 3
)

// Viewport is the browser viewport for a render.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// request is the wire payload for the rendering service. Exactly one of
// URL and HTML is set.
type request struct {
	URL      string   `json:"url,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Viewport Viewport `json:"viewport"`
	// Delay and Timeout are in milliseconds.
	Delay   int64 `json:"delay,omitempty"`
	Timeout int64 `json:"timeout,omitempty"`
}

// Client talks to the remote rendering service.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *log.Logger
}

// New creates a client for the rendering service at endpoint,
// authenticated with the given bearer token.
func New(endpoint, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		// Per-call deadlines come from the request context; the shared
		// client must not impose a second, shorter budget.
		http:   &http.Client{},
		logger: logger,
	}
}

// RenderOptions configures one render call.
type RenderOptions struct {
	Delay    time.Duration // post-load delay; zero means none
	Timeout  time.Duration // per-call budget; zero means DefaultTimeout
	Viewport Viewport      // zero value means 1200x1200
}

func (o *RenderOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = Viewport{Width: 1200, Height: 1200}
	}
}

// RenderURL navigates the remote browser to url and screenshots it.
func (c *Client) RenderURL(ctx context.Context, url string, opts RenderOptions) ([]byte, error) {
	opts.defaults()
	return c.capture(ctx, request{
		URL:      url,
		Viewport: opts.Viewport,
		Delay:    opts.Delay.Milliseconds(),
		Timeout:  opts.Timeout.Milliseconds(),
	}, opts.Timeout)
}

// RenderHTML submits inline markup to the remote browser and screenshots
// the resulting page.
func (c *Client) RenderHTML(ctx context.Context, html string, opts RenderOptions) ([]byte, error) {
	opts.defaults()
	return c.capture(ctx, request{
		HTML:     html,
		Viewport: opts.Viewport,
		Delay:    opts.Delay.Milliseconds(),
		Timeout:  opts.Timeout.Milliseconds(),
	}, opts.Timeout)
}

// capture performs the POST with retry. Attempts are retried only for
// server-side errors and transport-level network failures.
func (c *Client) capture(ctx context.Context, req request, timeout time.Duration) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal render request")
	}

	var out []byte
	err = httputil.Retry(ctx, retryAttempts, 2*time.Second, func() error {
		// The service gets the full timeout; the transport gets a little
		// headroom on top so the service can answer with its own error.
		callCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
		defer cancel()

		data, err := c.do(callCtx, payload)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		// An abort means the caller's own budget ran out; retrying would
		// only multiply the wait.
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "render call aborted")
		}
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "render call"))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read render response"))
		}
		return data, nil
	case resp.StatusCode >= 500:
		return nil, httputil.Retryable(errors.New(errors.ErrCodeNetwork, "render service: status %d", resp.StatusCode))
	default:
		return nil, errors.New(errors.ErrCodeRender, "render service: status %d", resp.StatusCode)
	}
}
