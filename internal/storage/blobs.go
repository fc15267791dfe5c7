// Package storage keeps product image blobs on local disk and hands out
// public URLs under /media/. It stands in for the hosted bucket; the server
// serves the directory directly.
package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/scooply/scooply/internal/logging"
)

// MediaPrefix is the URL path the server mounts the blob directory on.
const MediaPrefix = "/media/"

// allowedTypes maps sniffed content types to the extension blobs are stored
// under. Anything else is rejected.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// BlobStore writes uploads to dir and returns URLs rooted at baseURL.
type BlobStore struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewBlobStore creates the store, making dir if needed. baseURL is the
// public origin (e.g. http://localhost:8090) prepended to media paths.
func NewBlobStore(dir, baseURL string, maxSize int64) (*BlobStore, error) {
	if maxSize <= 0 {
		maxSize = 8 << 20
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &BlobStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

// Dir returns the directory blobs live in, for the HTTP file server.
func (b *BlobStore) Dir() string {
	return b.dir
}

// Put stores an upload and returns its public URL. The content type is
// sniffed from the first bytes; non-image payloads and oversize uploads are
// rejected.
func (b *BlobStore) Put(r io.Reader) (string, error) {
	// Read one byte past the cap to distinguish "at limit" from "over".
	data, err := io.ReadAll(io.LimitReader(r, b.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > b.maxSize {
		return "", fmt.Errorf("upload exceeds %d byte limit", b.maxSize)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty upload")
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %s", contentType)
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(b.dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	logging.Get(logging.CategoryStorage).Debug("stored blob %s (%d bytes, %s)", name, len(data), contentType)
	return b.baseURL + MediaPrefix + name, nil
}

// Delete removes the blob behind a URL previously returned by Put. Unknown
// URLs are a no-op; URLs outside the media prefix are rejected.
func (b *BlobStore) Delete(url string) error {
	name, err := b.blobName(url)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(b.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// blobName extracts and validates the file name from a media URL.
func (b *BlobStore) blobName(url string) (string, error) {
	idx := strings.Index(url, MediaPrefix)
	if idx < 0 {
		return "", fmt.Errorf("not a media URL: %s", url)
	}
	name := url[idx+len(MediaPrefix):]
	// Reject anything that could escape the media directory.
	if name == "" || name != path.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid media URL: %s", url)
	}
	return name, nil
}
