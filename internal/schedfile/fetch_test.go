package schedfile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("[Redes]\nParcial 10/11\n"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()

	first, err := f.Fetch(ctx, srv.URL+"/fechas.txt")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "[Redes]\nParcial 10/11\n", first.Text)

	second, err := f.Fetch(ctx, srv.URL+"/fechas.txt")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchFallsBackOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("[A]\n"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "[A]\n", res.Text)
}

func TestFetchErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewFetcher(t.TempDir()).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "404")
}

func TestOpenDispatchesOnScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("[Local]\n"), 0o644))

	text, err := Open(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, "[Local]\n", text)

	assert.True(t, IsRemote("HTTPS://x.test/f.txt"))
	assert.False(t, IsRemote("/srv/https/f.txt"))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://drive.test/...(redacted)", redactURL("https://drive.test/file?token=abc"))
	assert.Equal(t, "http://h/...(redacted)", redactURL("http://h"))
	assert.Equal(t, "...(redacted)", redactURL("nope"))
}
