package convert

import (
	"compress/gzip"
	"context"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"goconnectomist/internal/logger"
	"goconnectomist/pkg/errdefs"
)

// GzCompress writes path+".gz" and removes path when clean is set. It
// returns the compressed file path.
func GzCompress(ctx context.Context, path string, clean bool) (string, error) {
	if err := requireFiles(path); err != nil {
		return "", err
	}
	gzPath := path + ".gz"
	if err := compressFile(path, gzPath); err != nil {
		return "", err
	}
	if clean {
		if err := os.Remove(path); err != nil {
			return "", errors.Wrapf(err, "removing '%s'", path)
		}
	}

	info, err := os.Stat(gzPath)
	if err != nil {
		return "", errdefs.BadFile(gzPath)
	}
	log := logger.FromContext(ctx, "convert")
	log.Debug().
		Str("file", gzPath).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Msg("compressed")
	return gzPath, nil
}

func compressFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errdefs.BadFile(src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "creating '%s'", dst)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing '%s'", dst)
		}
	}()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		return errors.Wrapf(err, "compressing '%s'", src)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "compressing '%s'", src)
	}
	return nil
}
