// Package fsutil holds the file checks shared by the stage wrappers.
package fsutil

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"goconnectomist/pkg/errdefs"
)

// RequireFiles returns a bad file error naming the first path that is not
// a regular file.
func RequireFiles(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return errdefs.BadFile(p)
		}
	}
	return nil
}

// IsDir reports whether path is an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CopyFile copies src to dst with mode 0644.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errdefs.BadFile(src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for '%s'", dst)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating '%s'", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copying '%s' to '%s'", src, dst)
	}
	return errors.Wrapf(out.Close(), "closing '%s'", dst)
}

// RemoveDirs removes the directories concurrently. Nothing is removed
// unless every path is an existing directory whose parent is writable.
// Past that check every removal is attempted and the first error is
// returned.
func RemoveDirs(ctx context.Context, dirs ...string) error {
	for _, dir := range dirs {
		if !IsDir(dir) {
			return errors.Errorf("'%s' is not a directory, nothing removed", dir)
		}
		if err := unix.Access(filepath.Dir(dir), unix.W_OK); err != nil {
			return errors.Wrapf(err, "'%s' can't be removed, nothing removed", dir)
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			return errors.Wrapf(os.RemoveAll(dir), "removing '%s'", dir)
		})
	}
	return g.Wait()
}
