package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(ResolverOptions{
		TempDir: t.TempDir(),
		HTTP:    HTTPOptions{MaxRetries: 1, RatePerHost: 1000, Burst: 100, BaseBackoff: time.Millisecond},
	})
}

func TestResolve_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.csv")
	require.NoError(t, os.WriteFile(path, []byte("zip\n"), 0o644))

	r := newTestResolver(t)
	src, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path)
	require.NoError(t, src.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err, "local sources are never removed")

	src, err = r.Resolve(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path)
}

func TestResolve_Errors(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "")
	require.Error(t, err)

	_, err = r.Resolve(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, err = r.Resolve(ctx, t.TempDir())
	require.Error(t, err)

	_, err = r.Resolve(ctx, "s3://bucket/zips.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestResolve_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exports/reps.csv", r.URL.Path)
		_, _ = w.Write([]byte("zip,email\n"))
	}))
	defer srv.Close()

	src, err := newTestResolver(t).Resolve(context.Background(), srv.URL+"/exports/reps.csv")
	require.NoError(t, err)
	assert.Equal(t, "reps.csv", filepath.Base(src.Path))

	data, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, "zip,email\n", string(data))

	require.NoError(t, src.Close())
	_, err = os.Stat(src.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestResolve_ZipArchive(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"uszips.csv":  "zip,lat,lng\n",
		"extra.csv":   "a\n",
		"LICENSE.txt": "cc",
	})
	r := newTestResolver(t)

	src, err := r.Resolve(context.Background(), zipPath)
	require.NoError(t, err)
	assert.Equal(t, "extra.csv", filepath.Base(src.Path))
	require.NoError(t, src.Close())

	src, err = r.Resolve(context.Background(), zipPath+"#uszips.csv")
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck
	data, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, "zip,lat,lng\n", string(data))

	_, err = r.Resolve(context.Background(), zipPath+"#nope.csv")
	require.Error(t, err)
}

func TestSplitMember(t *testing.T) {
	loc, member := splitMember("data/zips.zip#uszips.csv")
	assert.Equal(t, "data/zips.zip", loc)
	assert.Equal(t, "uszips.csv", member)

	loc, member = splitMember("https://example.com/zips.csv#top")
	assert.Equal(t, "https://example.com/zips.csv#top", loc)
	assert.Empty(t, member)
}

func TestSourceClose_Nil(t *testing.T) {
	var s *Source
	assert.NoError(t, s.Close())
}
