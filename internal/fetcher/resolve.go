package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// TempDir holds downloads and extracted archives. Empty means os.TempDir().
	TempDir string
	HTTP    HTTPOptions
	FTP     FTPOptions
}

// Resolver turns source URIs into local files.
type Resolver struct {
	tempDir string
	http    Fetcher
	ftp     Fetcher
}

// NewResolver creates a Resolver with HTTP and FTP fetchers.
func NewResolver(opts ResolverOptions) *Resolver {
	return &Resolver{
		tempDir: opts.TempDir,
		http:    NewHTTPFetcher(opts.HTTP),
		ftp:     NewFTPFetcher(opts.FTP),
	}
}

// Source is a resolved input. Close removes any temporary files.
type Source struct {
	URI  string
	Path string
	work string
}

// Close removes the source's working directory, if it has one.
func (s *Source) Close() error {
	if s == nil || s.work == "" {
		return nil
	}
	return os.RemoveAll(s.work)
}

// Resolve fetches uri when remote and extracts it when it is a .zip. A
// "#member" suffix after a .zip selects the file inside the archive.
// Supported forms: a local path, file://, http://, https:// and ftp://.
func (r *Resolver) Resolve(ctx context.Context, uri string) (*Source, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, eris.New("fetcher: empty source uri")
	}
	location, member := splitMember(uri)
	src := &Source{URI: uri}

	local, err := r.localize(ctx, location, src)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	if !strings.EqualFold(filepath.Ext(local), ".zip") {
		src.Path = local
		return src, nil
	}

	if err := src.ensureWork(r.tempDir); err != nil {
		return nil, err
	}
	dest := filepath.Join(src.work, "unzipped")
	files, err := ExtractZIP(local, dest)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	src.Path, err = FindDataFile(files, member)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	zap.L().Debug("fetcher: extracted archive", zap.String("uri", uri), zap.String("path", src.Path))
	return src, nil
}

// localize returns a local path for location, downloading when remote.
func (r *Resolver) localize(ctx context.Context, location string, src *Source) (string, error) {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) < 2 {
		// Plain path; a one-letter scheme is a Windows drive.
		return statLocal(location)
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "file":
		return statLocal(u.Path)
	case "http", "https":
		f = r.http
	case "ftp":
		f = r.ftp
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}

	if err := src.ensureWork(r.tempDir); err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	dest := filepath.Join(src.work, name)

	n, err := f.DownloadToFile(ctx, location, dest)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: download %s", u.Redacted())
	}
	zap.L().Info("fetcher: downloaded source", zap.String("url", u.Redacted()), zap.Int64("bytes", n))
	return dest, nil
}

func (s *Source) ensureWork(base string) error {
	if s.work != "" {
		return nil
	}
	dir, err := os.MkdirTemp(base, "territory-src-*")
	if err != nil {
		return eris.Wrap(err, "fetcher: create temp dir")
	}
	s.work = dir
	return nil
}

func statLocal(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: open %s", p)
	}
	if info.IsDir() {
		return "", eris.Errorf("fetcher: %s is a directory", p)
	}
	return p, nil
}

// splitMember splits "archive.zip#member" into its parts.
func splitMember(uri string) (string, string) {
	i := strings.LastIndex(uri, "#")
	if i < 0 {
		return uri, ""
	}
	if strings.HasSuffix(strings.ToLower(uri[:i]), ".zip") {
		return uri[:i], uri[i+1:]
	}
	return uri, ""
}
