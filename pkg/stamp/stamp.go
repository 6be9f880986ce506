// Package stamp defines the content descriptor for a piece of addressed
// user content and the metadata resolvers that produce it.
//
// A stamp is identified by a stable content address. The resolver maps
// that address to the facts the rendering pipeline needs: where the raw
// content lives, what it claims to be, and an optional sequence number
// used for display labeling. Descriptors are immutable once resolved and
// consumed read-only downstream.
package stamp

import (
	"context"
	"errors"
)

// ErrNotFound is returned by resolvers when an identifier has no known content.
var ErrNotFound = errors.New("stamp not found")

// Stamp holds the resolved facts about one piece of content.
type Stamp struct {
	// Identifier is the stable content address.
	Identifier string `json:"identifier" bson:"identifier"`

	// SourceURL points at the raw content.
	SourceURL string `json:"source_url" bson:"source_url"`

	// MimeType is the declared content type. Empty when unknown.
	MimeType string `json:"mime_type,omitempty" bson:"mime_type,omitempty"`

	// SequenceNumber is an optional display label. Zero when absent.
	SequenceNumber int64 `json:"sequence_number,omitempty" bson:"sequence_number,omitempty"`
}

// Resolver maps a content identifier to its descriptor.
type Resolver interface {
	// Resolve returns the descriptor for identifier, or ErrNotFound
	// (possibly wrapped) when no content exists for it. Resolution
	// failures are never retried; the pipeline treats them as render
	// failures.
	Resolve(ctx context.Context, identifier string) (*Stamp, error)
}
