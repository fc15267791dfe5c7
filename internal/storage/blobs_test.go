package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n")
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0}
)

func newTestBlobStore(t *testing.T, maxSize int64) *BlobStore {
	t.Helper()
	b, err := NewBlobStore(filepath.Join(t.TempDir(), "media"), "http://localhost:8090", maxSize)
	require.NoError(t, err)
	return b
}

func TestPut_StoresAndNames(t *testing.T) {
	b := newTestBlobStore(t, 0)

	url, err := b.Put(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8090/media/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	name := strings.TrimPrefix(url, "http://localhost:8090"+MediaPrefix)
	data, err := os.ReadFile(filepath.Join(b.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestPut_SniffsJPEG(t *testing.T) {
	b := newTestBlobStore(t, 0)
	url, err := b.Put(bytes.NewReader(jpegHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"), url)
}

func TestPut_RejectsNonImage(t *testing.T) {
	b := newTestBlobStore(t, 0)
	_, err := b.Put(strings.NewReader("just some text, definitely not a photo"))
	assert.Error(t, err)
}

func TestPut_RejectsEmpty(t *testing.T) {
	b := newTestBlobStore(t, 0)
	_, err := b.Put(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestPut_EnforcesSizeLimit(t *testing.T) {
	b := newTestBlobStore(t, 64)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 100)...)
	_, err := b.Put(bytes.NewReader(big))
	assert.Error(t, err)

	small := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 32)...)
	_, err = b.Put(bytes.NewReader(small))
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	b := newTestBlobStore(t, 0)

	url, err := b.Put(bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.NoError(t, b.Delete(url))
	name := strings.TrimPrefix(url, "http://localhost:8090"+MediaPrefix)
	_, err = os.Stat(filepath.Join(b.Dir(), name))
	assert.True(t, os.IsNotExist(err))

	// Deleting again is a no-op.
	assert.NoError(t, b.Delete(url))
}

func TestDelete_RejectsForeignAndTraversalURLs(t *testing.T) {
	b := newTestBlobStore(t, 0)

	assert.Error(t, b.Delete("http://cdn.example/images/x.png"))
	assert.Error(t, b.Delete("http://localhost:8090/media/../scooply.db"))
	assert.Error(t, b.Delete("http://localhost:8090/media/"))
}
