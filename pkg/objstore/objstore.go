// Package objstore provides the durable object store boundary for rendered
// preview artifacts.
//
// The store is content-addressed by identifier and fronted by a CDN (or any
// static file server); previewd only needs three capabilities: existence
// checks, uploads with descriptive metadata, and the public URL the HTTP
// layer redirects to. Anything implementing Store can be swapped in behind
// configuration.
package objstore

import (
	"context"
)

// Store is the interface for durable artifact storage backends.
type Store interface {
	// Exists reports whether an artifact is already stored for identifier.
	Exists(ctx context.Context, identifier string) (bool, error)

	// Put stores the artifact bytes under identifier with descriptive
	// metadata attached as tags on the stored object. Overwrites any
	// existing artifact for the same identifier.
	Put(ctx context.Context, identifier string, data []byte, metadata map[string]string) error

	// PublicURL returns the CDN-facing URL for an identifier's artifact.
	// The URL is valid whether or not the artifact exists yet.
	PublicURL(identifier string) string
}
