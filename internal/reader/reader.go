// Package reader loads vector layers (points, lines, constraint polygons)
// from local files, ZIP archives, HTTP(S) and ArcGIS REST endpoints, and FTP.
package reader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/fetcher"
	"github.com/sells-group/segment-assigner/internal/model"
)

// Downloader fetches a remote source into a local directory.
type Downloader interface {
	Fetch(ctx context.Context, rawURL, destDir, ext string) (string, error)
}

// Reader resolves a source string to a layer.
type Reader struct {
	dl      Downloader
	tempDir string
	log     *zap.Logger
}

// New creates a Reader. Downloads and extracted archives are staged under
// tempDir (os.TempDir when empty) and removed after reading.
func New(dl Downloader, tempDir string) *Reader {
	return &Reader{
		dl:      dl,
		tempDir: tempDir,
		log:     zap.L().With(zap.String("component", "reader")),
	}
}

// Read loads source, which is a local path or an http(s)/ftp URL.
func (r *Reader) Read(ctx context.Context, source string) (*model.Layer, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, eris.New("reader: empty source")
	}

	work, err := os.MkdirTemp(r.tempDir, "assigner-*")
	if err != nil {
		return nil, eris.Wrap(err, "reader: create work dir")
	}
	defer os.RemoveAll(work) //nolint:errcheck

	if !fetcher.IsRemote(source) {
		return r.readLocal(ctx, source, work)
	}
	if r.dl == nil {
		return nil, eris.Errorf("reader: no downloader configured for %s", source)
	}

	if q, ok := ArcGISQueryURL(source); ok {
		layer, err := r.readRemote(ctx, q, work, ".geojson")
		if err == nil {
			return layer, nil
		}
		r.log.Warn("arcgis auto-query failed, trying raw url",
			zap.String("query_url", q),
			zap.Error(err),
		)
	}
	return r.readRemote(ctx, source, work, "")
}

func (r *Reader) readRemote(ctx context.Context, rawURL, work, ext string) (*model.Layer, error) {
	path, err := r.dl.Fetch(ctx, rawURL, work, ext)
	if err != nil {
		return nil, eris.Wrapf(err, "reader: download %s", rawURL)
	}
	r.log.Debug("downloaded source", zap.String("url", rawURL), zap.String("path", path))
	return r.readLocal(ctx, path, work)
}

func (r *Reader) readLocal(ctx context.Context, path, work string) (*model.Layer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".zip":
		dir := filepath.Join(work, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		files, err := fetcher.ExtractZIP(path, dir)
		if err != nil {
			return nil, eris.Wrapf(err, "reader: extract %s", path)
		}
		inner, ok := fetcher.PickDataset(files, ".shp", ".geojson", ".json", ".csv", ".xlsx")
		if !ok {
			return nil, eris.Errorf("reader: no supported dataset in %s", path)
		}
		return r.readLocal(ctx, inner, work)
	case ".shp":
		return ReadShapefile(path)
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "reader: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		// .geojson, .json, and untyped service responses.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "reader: read %s", path)
		}
		layer, err := ParseGeoJSON(data)
		if err != nil && ext != ".geojson" && ext != ".json" {
			return nil, eris.Wrapf(err, "reader: unsupported format %q", ext)
		}
		return layer, err
	}
}
