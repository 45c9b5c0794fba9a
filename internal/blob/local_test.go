package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalFetcher_FetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	f := NewLocalFetcher(0)
	b, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b.Data))
}

func TestLocalFetcher_FetchLocalFileMissing(t *testing.T) {
	f := NewLocalFetcher(0)
	_, err := f.Fetch(context.Background(), "/does/not/exist.txt")
	require.Error(t, err)
}

func TestLocalFetcher_FetchHTTPPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	f := NewLocalFetcher(0)
	b, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "plain body", string(b.Data))
	require.Equal(t, "text/plain", b.ContentType)
}

func TestLocalFetcher_FetchHTTPStripsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><h1>Title</h1><p>Body text.</p><script>ignored()</script></body></html>"))
	}))
	defer srv.Close()

	f := NewLocalFetcher(0)
	b, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, string(b.Data), "Title")
	require.Contains(t, string(b.Data), "Body text.")
	require.Equal(t, "text/plain", b.ContentType)
}

func TestLocalFetcher_FetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewLocalFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}
