package stamp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stampworks/previewd/pkg/errors"
)

const resolveTimeout = 10 * time.Second

// HTTPResolver resolves stamp metadata from an indexer API.
// The API is expected to answer GET {base}/{identifier} with a JSON
// descriptor, or 404 when the identifier is unknown.
type HTTPResolver struct {
	base string
	http *http.Client
}

// NewHTTPResolver creates a resolver against the given API base URL,
// e.g. "https://indexer.internal/api/v2/stamp".
func NewHTTPResolver(base string) *HTTPResolver {
	return &HTTPResolver{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: resolveTimeout},
	}
}

// Resolve fetches and decodes the descriptor for identifier.
func (r *HTTPResolver) Resolve(ctx context.Context, identifier string) (*Stamp, error) {
	u := r.base + "/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolve, err, "resolve %s", identifier)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// decoded below
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("resolve %s: %w", identifier, ErrNotFound)
	default:
		return nil, errors.New(errors.ErrCodeResolve, "resolve %s: status %d", identifier, resp.StatusCode)
	}

	var s Stamp
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolve, err, "decode descriptor for %s", identifier)
	}
	if s.Identifier == "" {
		s.Identifier = identifier
	}
	return &s, nil
}

// Ensure HTTPResolver implements Resolver.
var _ Resolver = (*HTTPResolver)(nil)
