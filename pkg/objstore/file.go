package objstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileStore is a filesystem-backed object store. Artifacts are written
// under a base directory and served by whatever static file server or CDN
// fronts that directory; PublicURL joins the configured public base URL
// with the artifact filename.
//
// Metadata is kept in a JSON sidecar next to each artifact, mirroring the
// tag set a cloud object store would carry.
type FileStore struct {
	dir       string
	publicURL string
}

// NewFileStore creates a filesystem object store rooted at dir.
// publicBase is the externally reachable URL prefix for the directory,
// e.g. "https://cdn.example.com/previews".
func NewFileStore(dir, publicBase string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	return &FileStore{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicBase, "/"),
	}, nil
}

// Exists reports whether an artifact is stored for identifier.
func (s *FileStore) Exists(ctx context.Context, identifier string) (bool, error) {
	_, err := os.Stat(s.artifactPath(identifier))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put stores the artifact and its metadata sidecar.
func (s *FileStore) Put(ctx context.Context, identifier string, data []byte, metadata map[string]string) error {
	if err := os.WriteFile(s.artifactPath(identifier), data, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if len(metadata) == 0 {
		return nil
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(identifier), meta, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// PublicURL returns the CDN-facing URL for an identifier's artifact.
func (s *FileStore) PublicURL(identifier string) string {
	return s.publicURL + "/" + url.PathEscape(objectName(identifier)) + ".png"
}

// Metadata reads back the metadata sidecar for an identifier.
// Returns an empty map if no sidecar exists.
func (s *FileStore) Metadata(identifier string) (map[string]string, error) {
	data, err := os.ReadFile(s.metaPath(identifier))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var meta map[string]string
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *FileStore) artifactPath(identifier string) string {
	return filepath.Join(s.dir, objectName(identifier)+".png")
}

func (s *FileStore) metaPath(identifier string) string {
	return filepath.Join(s.dir, objectName(identifier)+".json")
}

// objectName sanitizes an identifier for use as a filename. Identifiers
// are normally hex content addresses, but adversarial values must not
// escape the storage directory.
func objectName(identifier string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, identifier)
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
