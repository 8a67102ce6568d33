package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Bio\n\nSviluppatore."), 0o644))

	doc, err := NewFetcher(Config{Location: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "# Bio\n\nSviluppatore.", doc.Content)
}

func TestFetchMissingFile(t *testing.T) {
	_, err := NewFetcher(Config{Location: filepath.Join(t.TempDir(), "missing.txt")}).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewFetcher(Config{}).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchHTTPBypassesCache(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []*http.Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Clone(context.Background()))
		mu.Unlock()
		_, _ = w.Write([]byte("profilo remoto"))
	}))
	defer srv.Close()

	f := NewFetcher(Config{Location: srv.URL + "/profile.txt?v=1"})
	doc, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "profilo remoto", doc.Content)

	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	for _, r := range seen {
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.Equal(t, "1", r.URL.Query().Get("v"))
		assert.NotEmpty(t, r.URL.Query().Get("_"))
	}
}

func TestFetchHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewFetcher(Config{Location: srv.URL + "/missing"}).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewFetcher(Config{Location: srv.URL + "/broken"}).Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
