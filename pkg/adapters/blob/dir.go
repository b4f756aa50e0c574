// Package blob provides ports.BlobSink implementations: a local directory and
// an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata/pkg/ports"
)

var _ ports.BlobSink = (*DirSink)(nil)

// DirSink writes blobs below a local directory. Keys may contain slashes.
type DirSink struct {
	Root string
}

// NewDirSink creates a DirSink rooted at root.
func NewDirSink(root string) *DirSink {
	return &DirSink{Root: root}
}

// Put writes body to Root/key through a temporary file and a rename.
func (d *DirSink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	dest := filepath.Join(d.Root, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(body); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}
