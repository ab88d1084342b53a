package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// DataExtensions lists readable table formats in order of preference when
// an archive holds more than one.
var DataExtensions = []string{".shp", ".xlsx", ".csv"}

// ExtractZIP extracts every file of a ZIP archive into destDir and returns
// the extracted paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open zip archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// FindDataFile picks the table file among extracted paths. With a member
// name it returns the file with that base name; otherwise the first file
// of the most preferred extension, skipping hidden and resource-fork files.
func FindDataFile(paths []string, member string) (string, error) {
	if member != "" {
		for _, p := range paths {
			if filepath.Base(p) == member || filepath.ToSlash(p) == member || strings.HasSuffix(filepath.ToSlash(p), "/"+member) {
				return p, nil
			}
		}
		return "", eris.Errorf("fetcher: %q not found in archive", member)
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, ext := range DataExtensions {
		for _, p := range sorted {
			base := filepath.Base(p)
			if strings.HasPrefix(base, ".") || strings.Contains(filepath.ToSlash(p), "__MACOSX/") {
				continue
			}
			if strings.EqualFold(filepath.Ext(base), ext) {
				return p, nil
			}
		}
	}
	return "", eris.Errorf("fetcher: no %s file in archive", strings.Join(DataExtensions, ", "))
}

// extractZIPEntry writes one entry under destDir, rejecting paths that
// escape it. Directories return "".
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("fetcher: illegal zip entry path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "fetcher: create directory")
		}
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "fetcher: open zip entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "fetcher: write zip entry")
	}
	return destPath, nil
}
