// Package cache provides the persistent key-value store used for preview
// memoization.
//
// The Cache interface is deliberately narrow (get/set-with-TTL/delete) so
// that backends can be swapped behind configuration without touching the
// pipeline:
//   - redis: production multi-instance deployments
//   - file: single-host deployments and CLI usage
//   - memory: development and tests
//
// Values are raw bytes; callers marshal/unmarshal their own envelopes.
// Correctness under concurrent writers for the same key is delegated to
// the backend's own last-write-wins semantics; no client-side locking is
// performed here.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the interface for key-value cache backends.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (nil, false, nil) on a miss; expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Hash returns the hex-encoded SHA-256 of data. Used to derive safe,
// collision-free storage keys and filenames from arbitrary cache keys.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
