package indexer

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultShapefileURL is the Census TIGER/Line nationwide county shapefile.
const DefaultShapefileURL = "https://www2.census.gov/geo/tiger/TIGER2024/COUNTY/tl_2024_us_county.zip"

// shapefileExts are the archive members Build needs on disk. go-shp opens
// the .shp and resolves its .shx/.dbf companions by basename; the rest of
// the archive (.prj, .cpg, metadata XML) is dead weight for the index.
var shapefileExts = map[string]bool{".shp": true, ".shx": true, ".dbf": true}

// FetchShapefile ensures the county shapefile is on disk under destDir and
// returns the .shp path. The ZIP is cached so repeated builds skip the
// 80 MB transfer, but the members are re-extracted every time.
func FetchShapefile(ctx context.Context, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "indexer.fetch"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "indexer: create dest dir")
	}

	zipPath := filepath.Join(destDir, path.Base(url))
	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("reusing cached archive", zap.String("path", zipPath))
	} else {
		log.Info("downloading county shapefile")
		if err := fetchToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "indexer: download shapefile")
		}
	}

	shpPath, err := extractShapefile(zipPath, destDir)
	if err != nil {
		return "", eris.Wrap(err, "indexer: extract shapefile")
	}
	return shpPath, nil
}

func fetchToFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}

	return nil
}

// extractShapefile pulls the shapefile members out of the archive into
// destDir and returns the extracted .shp path.
func extractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	var shpPath string
	for _, f := range r.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if f.FileInfo().IsDir() || !shapefileExts[ext] {
			continue
		}

		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if err := writeEntry(f, destPath); err != nil {
			return "", err
		}
		if ext == ".shp" {
			shpPath = destPath
		}
	}

	if shpPath == "" {
		return "", eris.Errorf("no .shp entry in %s", zipPath)
	}
	return shpPath, nil
}

func writeEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "create %s", destPath)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "extract %s", f.Name)
	}
	return out.Close()
}
