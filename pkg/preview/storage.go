package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stampworks/previewd/pkg/cache"
	"github.com/stampworks/previewd/pkg/objstore"
)

// Entry lifecycle policy.
const (
	// SuccessTTL is how long a rendered preview stays cached.
	SuccessTTL = 7 * 24 * time.Hour

	// FailureWindow is how long a failure marker short-circuits
	// re-render attempts. Once expired the marker is treated as absent.
	FailureWindow = time.Hour

	keyPrefix = "preview:"
)

// Stored is what the storage layer hands back for a cached identifier.
// Exactly one of PNG and RedirectURL is set for successes; FailedAt is set
// for failure markers.
type Stored struct {
	PNG         []byte
	RedirectURL string
	Metadata    map[string]string
	FailedAt    time.Time
}

// IsFailure reports whether this entry is a failure marker.
func (s *Stored) IsFailure() bool { return !s.FailedAt.IsZero() }

// Storage is the persistence policy behind the memoization layer. Two
// interchangeable implementations exist: inline (artifact bytes live in
// the cache store) and object (artifact bytes live in the durable object
// store, the cache holds a pointer). Both honor the same forced-refresh
// and failure-memoization semantics.
type Storage interface {
	// Get returns the stored entry for identifier, or (nil, nil) when
	// absent. Expired entries are absent.
	Get(ctx context.Context, identifier string) (*Stored, error)

	// Put persists a successful render and returns how it will be served.
	Put(ctx context.Context, identifier string, p *Preview) (*Stored, error)

	// MarkFailure persists a time-bounded failure marker.
	MarkFailure(ctx context.Context, identifier string, at time.Time) error

	// Invalidate removes any entry (success or failure) for identifier.
	Invalidate(ctx context.Context, identifier string) error
}

// storedEntry is the JSON envelope written to the cache store.
type storedEntry struct {
	PNG      []byte            `json:"png,omitempty"` // base64 via encoding/json
	URL      string            `json:"url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	FailedAt time.Time         `json:"failed_at,omitzero"`
}

func entryKey(identifier string) string { return keyPrefix + identifier }

func getEntry(ctx context.Context, c cache.Cache, identifier string) (*storedEntry, error) {
	data, ok, err := c.Get(ctx, entryKey(identifier))
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", identifier, err)
	}
	if !ok {
		return nil, nil
	}
	var e storedEntry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = c.Delete(ctx, entryKey(identifier))
		return nil, nil
	}
	return &e, nil
}

func setEntry(ctx context.Context, c cache.Cache, identifier string, e *storedEntry, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.Set(ctx, entryKey(identifier), data, ttl)
}

// InlineStorage persists the encoded artifact directly in the cache store
// and serves bytes inline.
type InlineStorage struct {
	Cache cache.Cache
}

// NewInlineStorage creates the inline persistence policy.
func NewInlineStorage(c cache.Cache) *InlineStorage {
	return &InlineStorage{Cache: c}
}

func (s *InlineStorage) Get(ctx context.Context, identifier string) (*Stored, error) {
	e, err := getEntry(ctx, s.Cache, identifier)
	if err != nil || e == nil {
		return nil, err
	}
	return &Stored{PNG: e.PNG, Metadata: e.Metadata, FailedAt: e.FailedAt}, nil
}

func (s *InlineStorage) Put(ctx context.Context, identifier string, p *Preview) (*Stored, error) {
	e := &storedEntry{PNG: p.PNG, Metadata: p.Metadata}
	if err := setEntry(ctx, s.Cache, identifier, e, SuccessTTL); err != nil {
		return nil, err
	}
	return &Stored{PNG: p.PNG, Metadata: p.Metadata}, nil
}

func (s *InlineStorage) MarkFailure(ctx context.Context, identifier string, at time.Time) error {
	return setEntry(ctx, s.Cache, identifier, &storedEntry{FailedAt: at}, FailureWindow)
}

func (s *InlineStorage) Invalidate(ctx context.Context, identifier string) error {
	return s.Cache.Delete(ctx, entryKey(identifier))
}

// ObjectStorage uploads artifact bytes to the durable object store and
// serves a redirect to its content-delivery front end. The cache store
// holds the pointer entry and the failure markers.
type ObjectStorage struct {
	Cache cache.Cache
	Store objstore.Store
}

// NewObjectStorage creates the object-store persistence policy.
func NewObjectStorage(c cache.Cache, store objstore.Store) *ObjectStorage {
	return &ObjectStorage{Cache: c, Store: store}
}

func (s *ObjectStorage) Get(ctx context.Context, identifier string) (*Stored, error) {
	e, err := getEntry(ctx, s.Cache, identifier)
	if err != nil {
		return nil, err
	}
	if e != nil {
		return &Stored{RedirectURL: e.URL, Metadata: e.Metadata, FailedAt: e.FailedAt}, nil
	}

	// The durable store outlives the cache pointer; an artifact that is
	// still present can be served without re-rendering.
	ok, err := s.Store.Exists(ctx, identifier)
	if err != nil || !ok {
		return nil, err
	}
	return &Stored{RedirectURL: s.Store.PublicURL(identifier)}, nil
}

func (s *ObjectStorage) Put(ctx context.Context, identifier string, p *Preview) (*Stored, error) {
	if err := s.Store.Put(ctx, identifier, p.PNG, p.Metadata); err != nil {
		return nil, fmt.Errorf("object store put %s: %w", identifier, err)
	}
	u := s.Store.PublicURL(identifier)
	e := &storedEntry{URL: u, Metadata: p.Metadata}
	if err := setEntry(ctx, s.Cache, identifier, e, SuccessTTL); err != nil {
		return nil, err
	}
	return &Stored{RedirectURL: u, Metadata: p.Metadata}, nil
}

func (s *ObjectStorage) MarkFailure(ctx context.Context, identifier string, at time.Time) error {
	return setEntry(ctx, s.Cache, identifier, &storedEntry{FailedAt: at}, FailureWindow)
}

func (s *ObjectStorage) Invalidate(ctx context.Context, identifier string) error {
	return s.Cache.Delete(ctx, entryKey(identifier))
}

// Ensure both policies implement Storage.
var (
	_ Storage = (*InlineStorage)(nil)
	_ Storage = (*ObjectStorage)(nil)
)
