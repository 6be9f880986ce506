package stamp

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stampworks/previewd/pkg/errors"
)

const (
	fetchTimeout = 20 * time.Second

	// maxContentSize bounds how much raw content the pipeline will pull
	// into memory for classification and rendering.
	maxContentSize = 32 << 20 // 32 MiB
)

// Fetcher downloads raw stamp content for classification and rendering.
type Fetcher struct {
	http *http.Client
}

// NewFetcher creates a fetcher with the standard content timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{http: &http.Client{Timeout: fetchTimeout}}
}

// Fetch retrieves the raw bytes at url along with the served Content-Type.
// Non-2xx responses and transport failures surface as fetch failures; they
// are not retried at this layer.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeFetch, err, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", errors.New(errors.ErrCodeFetch, "fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize+1))
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeFetch, err, "read %s", url)
	}
	if len(data) > maxContentSize {
		return nil, "", errors.New(errors.ErrCodeFetch, "fetch %s: content exceeds %d bytes", url, maxContentSize)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
