package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconnectomist/pkg/errdefs"
)

func TestRequireFilesNamesFirstMissing(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.ima")
	b := filepath.Join(dir, "b.ima")
	c := filepath.Join(dir, "c.ima")
	require.NoError(t, os.WriteFile(a, nil, 0644))

	err := RequireFiles(a, b, c)
	e, ok := errdefs.As(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.KindBadFile, e.Kind)
	assert.Equal(t, b, e.Path)

	assert.Error(t, RequireFiles(dir))
	assert.NoError(t, RequireFiles(a))
	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(a))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "outliers.py")
	require.NoError(t, os.WriteFile(src, []byte("outliers = {}"), 0644))

	dst := filepath.Join(dir, "sub", "outliers.py")
	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "outliers = {}", string(data))

	assert.True(t, errdefs.IsKind(CopyFile(filepath.Join(dir, "absent"), dst), errdefs.KindBadFile))
}

func TestRemoveDirs(t *testing.T) {
	dir := t.TempDir()
	var dirs []string
	for _, name := range []string{"01-Import", "02-Mask", "03-Outliers"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Join(path, "nested"), 0755))
		dirs = append(dirs, path)
	}
	keep := filepath.Join(dir, "06-Registration")
	require.NoError(t, os.MkdirAll(keep, 0755))

	require.NoError(t, RemoveDirs(context.Background(), dirs...))
	for _, path := range dirs {
		assert.NoDirExists(t, path)
	}
	assert.DirExists(t, keep)
	assert.NoError(t, RemoveDirs(context.Background()))
}

func TestRemoveDirsRemovesNothingOnBadPath(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "01-Import")
	second := filepath.Join(dir, "02-Mask")
	require.NoError(t, os.MkdirAll(first, 0755))
	require.NoError(t, os.MkdirAll(second, 0755))
	file := filepath.Join(dir, "outliers.py")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	for _, bad := range []string{filepath.Join(dir, "03-Outliers"), file} {
		err := RemoveDirs(context.Background(), first, bad, second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nothing removed")
		assert.DirExists(t, first)
		assert.DirExists(t, second)
	}
}
