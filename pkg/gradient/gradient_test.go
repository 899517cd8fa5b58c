package gradient

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconnectomist/internal/models"
	"goconnectomist/pkg/errdefs"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadTransposesRowVectors(t *testing.T) {
	dir := t.TempDir()
	bval := write(t, dir, "dwi.bval", "0 0 1500 1500\n")
	bvec := write(t, dir, "dwi.bvec", "0 0 1 0\n0 0 0 1\n0 0 0 0\n")

	table, err := Read(bval, bvec, DefaultMinBValue)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 1500, 1500}, table.BValues)
	assert.Equal(t, [][3]float64{{0, 0, 0}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, table.BVectors)
	assert.Equal(t, 1, table.ShellCount)
	assert.Equal(t, 2, table.NoDiffusionCount)
}

func TestReadColumnLayouts(t *testing.T) {
	dir := t.TempDir()
	bval := write(t, dir, "dwi.bval", "0\n1000\n2000\n1000.4\n")
	bvec := write(t, dir, "dwi.bvec", "0 0 0\n1 0 0\n0 1 0\n0 0 1\n")

	table, err := Read(bval, bvec, DefaultMinBValue)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 2, table.ShellCount)
	assert.Equal(t, 1, table.NoDiffusionCount)
	assert.Equal(t, [3]float64{0, 0, 1}, table.BVectors[3])
}

func TestReadRejectsSmallBValues(t *testing.T) {
	dir := t.TempDir()
	bvec := write(t, dir, "dwi.bvec", "0 0 1 0\n0 0 0 1\n0 0 0 0\n")

	ok := write(t, dir, "ok.bval", "0 0 1500 150")
	_, err := Read(ok, bvec, 100)
	assert.NoError(t, err)

	small := write(t, dir, "small.bval", "0 0 1500 10")
	_, err = Read(small, bvec, 100)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
	assert.Contains(t, err.Error(), "Small b-values detected")
}

func TestReadRejectsNonFiniteValues(t *testing.T) {
	dir := t.TempDir()
	bvec := write(t, dir, "dwi.bvec", "0 1 0\n0 0 1\n0 0 0\n")

	for i, bvals := range []string{"-0 1000 nan", "0 1000 inf", "0 -Inf 1000"} {
		bval := write(t, dir, fmt.Sprintf("bad%d.bval", i), bvals)
		_, err := Read(bval, bvec, 100)
		require.Error(t, err, bvals)
		assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
		assert.Contains(t, err.Error(), "non finite")
	}

	nanVec := write(t, dir, "nan.bvec", "0 1 0\n0 0 NaN\n0 0 0\n")
	_, err := Read(write(t, dir, "ok.bval", "0 1000 1000"), nanVec, 100)
	assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
}

func TestReadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	bval3 := write(t, dir, "three.bval", "0 1000 1000")
	bval5 := write(t, dir, "five.bval", "0 1000 1000 1000 1000")
	bvec4 := write(t, dir, "four.bvec", "0 1 0 0\n0 0 1 0\n0 0 0 1\n")

	for _, bval := range []string{bval3, bval5} {
		_, err := Read(bval, bvec4, DefaultMinBValue)
		require.Error(t, err)
		assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
		assert.Contains(t, err.Error(), "do not correspond")
	}
}

func TestReadShapeErrors(t *testing.T) {
	dir := t.TempDir()
	bval := write(t, dir, "dwi.bval", "0 1000 1000")
	matrixBval := write(t, dir, "matrix.bval", "0 1000\n1000 1000\n")
	flatBvec := write(t, dir, "flat.bvec", "0 1 0")
	bvec := write(t, dir, "dwi.bvec", "0 1 0\n0 0 1\n0 0 0\n")

	_, err := Read(matrixBval, bvec, DefaultMinBValue)
	assert.Contains(t, err.Error(), "one dimensional")

	_, err = Read(bval, flatBvec, DefaultMinBValue)
	assert.Contains(t, err.Error(), "two dimensional")

	_, err = Read(filepath.Join(dir, "absent.bval"), bvec, DefaultMinBValue)
	assert.True(t, errdefs.IsKind(err, errdefs.KindBadFile))
}

func TestReadManyConcatenates(t *testing.T) {
	dir := t.TempDir()
	bvalA := write(t, dir, "a.bval", "0 1000")
	bvecA := write(t, dir, "a.bvec", "0 1\n0 0\n0 0\n")
	bvalB := write(t, dir, "b.bval", "0 1000 1000")
	bvecB := write(t, dir, "b.bvec", "0 0 0\n0 1 0\n0 0 1\n")

	table, err := ReadMany([]string{bvalA, bvalB}, []string{bvecA, bvecB}, DefaultMinBValue)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1000, 0, 1000, 1000}, table.BValues)
	assert.Equal(t, [3]float64{1, 0, 0}, table.BVectors[1])
	assert.Equal(t, [3]float64{0, 0, 1}, table.BVectors[4])
	assert.Equal(t, 2, table.NoDiffusionCount)

	_, err = ReadMany([]string{bvalA}, nil, DefaultMinBValue)
	assert.Error(t, err)
}

func TestMergeNonDiffusion(t *testing.T) {
	table := &models.GradientTable{
		BValues:          []float64{0, 1000, 0, 1000},
		BVectors:         [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 0, 0}, {0, 1, 0}},
		ShellCount:       1,
		NoDiffusionCount: 2,
	}

	merged := MergeNonDiffusion(table)
	assert.Equal(t, []float64{0, 1000, 1000}, merged.BValues)
	assert.Equal(t, [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, merged.BVectors)
	assert.Equal(t, 1, merged.NoDiffusionCount)
}

func TestNormalize(t *testing.T) {
	out := Normalize([][3]float64{{3, 4, 0}, {0, 0, 0}, {1, 1, 1}})
	for i, v := range out {
		norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		if i == 1 {
			assert.Equal(t, 0.0, norm)
			continue
		}
		assert.InDelta(t, 1.0, norm, 1e-12)
	}
	assert.InDelta(t, 0.6, out[0][0], 1e-12)
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bval := filepath.Join(dir, "out.bval")
	bvec := filepath.Join(dir, "out.bvec")

	require.NoError(t, WriteBValues(bval, []float64{0, 1500, 1500}))
	require.NoError(t, WriteBVectors(bvec, [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, 10))

	data, err := os.ReadFile(bval)
	require.NoError(t, err)
	assert.Equal(t, "0 1500 1500\n", string(data))

	data, err = os.ReadFile(bvec)
	require.NoError(t, err)
	assert.Equal(t, "0.0000000000 1.0000000000 0.0000000000\n"+
		"0.0000000000 0.0000000000 1.0000000000\n"+
		"0.0000000000 0.0000000000 0.0000000000\n", string(data))

	table, err := Read(bval, bvec, DefaultMinBValue)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}
