// Package columnar writes row structs to gzip-compressed parquet files.
package columnar

import (
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
)

// WriteFile writes rows to path as a single parquet file. The schema is
// derived from T's parquet struct tags. Parent directories are created.
func WriteFile[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "columnar: create dir for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "columnar: create %s", path)
	}

	w := parquet.NewGenericWriter[T](f, parquet.Compression(&parquet.Gzip))
	if _, err := w.Write(rows); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "columnar: write rows to %s", path)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "columnar: flush %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "columnar: close %s", path)
	}
	return nil
}

