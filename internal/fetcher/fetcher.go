// Package fetcher downloads remote inputs (HTTP, HTTPS, FTP) to local files
// and unpacks ZIP archives.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options configures a Client.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond is the initial per-host HTTP rate.
	RequestsPerSecond float64
}

// Client routes downloads to the HTTP or FTP fetcher by URL scheme.
type Client struct {
	http Fetcher
	ftp  Fetcher
}

// New creates a Client with HTTP and FTP fetchers built from opts.
func New(opts Options) *Client {
	return &Client{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:         opts.UserAgent,
			Timeout:           opts.Timeout,
			MaxRetries:        opts.MaxRetries,
			RequestsPerSecond: opts.RequestsPerSecond,
		}),
		ftp: NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

// NewWith builds a Client from explicit fetchers.
func NewWith(httpFetcher, ftpFetcher Fetcher) *Client {
	return &Client{http: httpFetcher, ftp: ftpFetcher}
}

// IsRemote reports whether source is a URL this package can download.
func IsRemote(source string) bool {
	switch scheme(source) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Fetch downloads rawURL into destDir and returns the local file path. The
// file name comes from the last URL path element; ext, when set, replaces
// its extension.
func (c *Client) Fetch(ctx context.Context, rawURL, destDir, ext string) (string, error) {
	var f Fetcher
	switch scheme(rawURL) {
	case "http", "https":
		f = c.http
	case "ftp":
		f = c.ftp
	default:
		return "", eris.Errorf("fetcher: unsupported url %q", rawURL)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create download dir")
	}
	dest := filepath.Join(destDir, FileName(rawURL, ext))
	if _, err := f.DownloadToFile(ctx, rawURL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// FileName derives a local file name for rawURL.
func FileName(rawURL, ext string) string {
	name := "download"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if ext != "" {
		name = strings.TrimSuffix(name, path.Ext(name)) + ext
	}
	return name
}

func scheme(source string) string {
	i := strings.Index(source, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(source[:i])
}

// writeFile copies body to path, closing body.
func writeFile(body io.ReadCloser, path string) (int64, error) {
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
