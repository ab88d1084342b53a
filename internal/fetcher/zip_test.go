package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"zips.csv":        "zip,lat,lng",
		"docs/readme.txt": "hello",
	})

	dest := t.TempDir()
	extracted, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, extracted, 2)

	data, err := os.ReadFile(filepath.Join(dest, "zips.csv"))
	require.NoError(t, err)
	assert.Equal(t, "zip,lat,lng", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "docs", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestExtractZIP_RejectsZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../../evil.csv": "x"})
	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal zip entry path")
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
}

func TestFindDataFile(t *testing.T) {
	paths := []string{
		"/tmp/x/readme.txt",
		"/tmp/x/__MACOSX/zips.shp",
		"/tmp/x/b.csv",
		"/tmp/x/a.csv",
		"/tmp/x/zips.xlsx",
	}

	got, err := FindDataFile(paths, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x/zips.xlsx", got)

	got, err = FindDataFile(paths[:4], "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x/a.csv", got)

	got, err = FindDataFile(paths, "b.csv")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x/b.csv", got)

	_, err = FindDataFile(paths, "missing.csv")
	require.Error(t, err)

	_, err = FindDataFile([]string{"/tmp/x/readme.txt"}, "")
	require.Error(t, err)
}
