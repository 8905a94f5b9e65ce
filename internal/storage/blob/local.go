package blob

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// LocalStore is the filesystem implementation of the blob interface. Paths
// are relative keys under the root directory; retrieval URLs are the
// configured base URL plus the key. A cloud implementation must produce the
// same keys, differing only in URL prefix.
type LocalStore struct {
	root    string
	baseURL string
	logger  arbor.ILogger
}

// NewLocalStore creates a filesystem blob store rooted at dir
func NewLocalStore(dir, baseURL string, logger arbor.ILogger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &LocalStore{
		root:    dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

var _ interfaces.BlobStorage = (*LocalStore)(nil)

// resolve maps a storage key to an on-disk path, rejecting traversal
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(strings.TrimPrefix(path, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}

// Save writes bytes under the given path, creating parents as needed
func (s *LocalStore) Save(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Saved artifact")
	return nil
}

// Get reads the bytes stored under path
func (s *LocalStore) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the object; deleting a missing object is not an error
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// List returns all stored keys under the given prefix
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	return keys, nil
}

// SignedURL returns a retrieval URL for the object. Local objects are served
// under the configured base path; there is nothing to sign.
func (s *LocalStore) SignedURL(path string) string {
	return s.baseURL + "/" + strings.TrimPrefix(path, "/")
}
