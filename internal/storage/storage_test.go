package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	a := NewKey("reports/Q3 invoice.pdf")
	b := NewKey("reports/Q3 invoice.pdf")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "-Q3_invoice.pdf"), a)
	assert.Len(t, NewKey(""), 26)
}

func TestMemoryBlob(t *testing.T) {
	blob := NewMemory()
	ctx := context.Background()

	key, err := blob.Put(ctx, []byte("%PDF-1.4"), PutOptions{Filename: "a.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)

	ok, err := blob.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := blob.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, err = blob.Get(ctx, "missing")
	assert.ErrorIs(t, err, bluErrors.ErrNotFound)
}

func TestNew_Drivers(t *testing.T) {
	blob, err := New(context.Background(), config.StorageConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, blob)

	blob, err = New(context.Background(), config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBlob{}, blob)

	_, err = New(context.Background(), config.StorageConfig{Driver: "s3"})
	assert.ErrorIs(t, err, bluErrors.ErrInvalidInput)

	_, err = New(context.Background(), config.StorageConfig{Driver: "azure"})
	assert.ErrorIs(t, err, bluErrors.ErrInvalidInput)
}

type fakeS3 struct {
	mu      sync.Mutex
	puts    []string
	objects map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.puts = append(f.puts, r.URL.Path)
		f.objects[r.URL.Path] = true
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if f.objects[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Blob_PutAndExists(t *testing.T) {
	fake := &fakeS3{objects: map[string]bool{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	blob, err := NewS3(context.Background(), config.StorageConfig{
		Bucket:          "docs",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		Prefix:          "/uploads/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	key, err := blob.Put(context.Background(), []byte("hello"), PutOptions{Filename: "note.txt", MimeType: "text/plain"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "uploads/"), key)
	assert.True(t, strings.HasSuffix(key, "-note.txt"), key)

	fake.mu.Lock()
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "/docs/"+key, fake.puts[0])
	fake.mu.Unlock()

	ok, err := blob.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = blob.Exists(context.Background(), "uploads/missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
