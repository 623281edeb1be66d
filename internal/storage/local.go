package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LocalUploader copies files under Root/<bucket>/<key>. It stands in for S3
// in dry runs and tests.
type LocalUploader struct {
	Root string
}

// Upload copies localPath into the local bucket tree.
func (u *LocalUploader) Upload(ctx context.Context, localPath, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "storage: upload cancelled")
	}

	dst := filepath.Join(u.Root, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "storage: mkdir for %s", dst)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return eris.Wrapf(err, "storage: open %s", localPath)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "storage: create %s", dst)
	}
	n, err := io.Copy(out, src)
	if err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "storage: copy to %s", dst)
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "storage: close %s", dst)
	}

	zap.L().Info("copied object",
		zap.String("component", "storage"),
		zap.String("path", dst),
		zap.Int64("bytes", n),
	)
	return nil
}
