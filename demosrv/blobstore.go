package demosrv

import (
	"context"
	"os"
	"path/filepath"
)

// BlobStore keeps received submission files. Key is a relative path
// like "<cidnr>/<aid>/<filename>".
type BlobStore interface {
	Save(ctx context.Context, key string, content []byte, mediaType string) error
}

// DirStore writes submissions under a local directory.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) Save(_ context.Context, key string, content []byte, _ string) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}
