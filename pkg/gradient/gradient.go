// Package gradient reads, validates and writes diffusion gradient tables
// stored as FSL-style .bval/.bvec text files.
package gradient

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"goconnectomist/internal/models"
	"goconnectomist/pkg/errdefs"
)

// DefaultMinBValue is the smallest accepted non-zero b-value.
const DefaultMinBValue = 100.0

// zeroBValue is the largest b-value counted as non diffusion weighted.
const zeroBValue = 1e-3

// Read loads a b-value file and a b-vector file and validates them as a
// single gradient table. B-vectors stored as three rows are transposed to
// one row per volume.
func Read(bvalPath, bvecPath string, minBValue float64) (*models.GradientTable, error) {
	return ReadMany([]string{bvalPath}, []string{bvecPath}, minBValue)
}

// ReadMany concatenates several b-value and b-vector files in order and
// validates the result as one gradient table.
func ReadMany(bvalPaths, bvecPaths []string, minBValue float64) (*models.GradientTable, error) {
	if len(bvalPaths) == 0 || len(bvalPaths) != len(bvecPaths) {
		return nil, errdefs.Validation("expected matching lists of b-values and b-vectors files, got %d and %d",
			len(bvalPaths), len(bvecPaths))
	}

	table := &models.GradientTable{}
	for _, path := range bvalPaths {
		bvals, err := readBValues(path)
		if err != nil {
			return nil, err
		}
		table.BValues = append(table.BValues, bvals...)
	}
	for _, path := range bvecPaths {
		bvecs, err := readBVectors(path)
		if err != nil {
			return nil, err
		}
		table.BVectors = append(table.BVectors, bvecs...)
	}

	if len(table.BValues) != len(table.BVectors) {
		return nil, errdefs.Validation("b-values and b-vectors shapes do not correspond: %d b-values, %d b-vectors.",
			len(table.BValues), len(table.BVectors))
	}

	shells := make(map[float64]struct{})
	smallest := math.Inf(1)
	for _, b := range table.BValues {
		if math.Abs(b) < zeroBValue {
			table.NoDiffusionCount++
			continue
		}
		shells[math.Round(b)] = struct{}{}
		smallest = math.Min(smallest, b)
	}
	table.ShellCount = len(shells)

	if len(shells) > 0 && smallest < minBValue {
		return nil, errdefs.Validation("Small b-values detected (<%v) in '%s'.", minBValue, strings.Join(bvalPaths, ", "))
	}

	return table, nil
}

// IsDiffusionWeighted reports whether b is a diffusion weighted b-value.
func IsDiffusionWeighted(b float64) bool {
	return math.Abs(b) >= zeroBValue
}

func readBValues(path string) ([]float64, error) {
	rows, cols, data, err := loadText(path)
	if err != nil {
		return nil, err
	}
	if rows > 1 && cols > 1 {
		return nil, errdefs.Validation("b-values file should be saved as a one dimensional array: '%s'.", path)
	}
	return data, nil
}

func readBVectors(path string) ([][3]float64, error) {
	rows, cols, data, err := loadText(path)
	if err != nil {
		return nil, err
	}
	if rows < 2 || cols < 2 {
		return nil, errdefs.Validation("b-vectors file should be saved as a two dimensional array: '%s'.", path)
	}

	// Three rows is the FSL layout even when fewer than three volumes exist.
	var m mat.Matrix = mat.NewDense(rows, cols, data)
	if cols > rows || (rows == 3 && cols != 3) {
		m = m.T()
	}
	r, c := m.Dims()
	if c != 3 {
		return nil, errdefs.Validation("b-vectors should have three components, found %d in '%s'.", c, path)
	}

	vectors := make([][3]float64, r)
	for i := range vectors {
		vectors[i] = [3]float64{m.At(i, 0), m.At(i, 1), m.At(i, 2)}
	}
	return vectors, nil
}

// loadText reads a whitespace delimited numeric matrix. Blank lines and
// lines starting with '#' are ignored.
func loadText(path string) (rows, cols int, data []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, errdefs.BadFile(path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if cols == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return 0, 0, nil, errdefs.Validation("inconsistent column count in '%s' at row %d.", path, rows+1)
		}
		for _, field := range fields {
			v, perr := strconv.ParseFloat(field, 64)
			if perr != nil {
				return 0, 0, nil, errdefs.Validation("invalid number %q in '%s'.", field, path)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, nil, errdefs.Validation("non finite value %q in '%s' at row %d.", field, path, rows+1)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, nil, errors.Wrapf(err, "reading '%s'", path)
	}
	if rows == 0 {
		return 0, 0, nil, errdefs.Validation("empty gradient file '%s'.", path)
	}
	return rows, cols, data, nil
}

// MergeNonDiffusion returns a table where all non diffusion weighted volumes
// are represented by a single leading b=0 entry with a zero vector, followed
// by the diffusion weighted entries in their original order.
func MergeNonDiffusion(table *models.GradientTable) *models.GradientTable {
	merged := &models.GradientTable{
		BValues:          []float64{0},
		BVectors:         [][3]float64{{0, 0, 0}},
		ShellCount:       table.ShellCount,
		NoDiffusionCount: 1,
	}
	for i, b := range table.BValues {
		if !IsDiffusionWeighted(b) {
			continue
		}
		merged.BValues = append(merged.BValues, b)
		merged.BVectors = append(merged.BVectors, table.BVectors[i])
	}
	return merged
}

// Normalize returns unit length copies of vectors. Zero vectors stay zero.
func Normalize(vectors [][3]float64) [][3]float64 {
	out := make([][3]float64, len(vectors))
	for i, v := range vectors {
		row := []float64{v[0], v[1], v[2]}
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		out[i] = [3]float64{row[0], row[1], row[2]}
	}
	return out
}

// WriteBValues writes b-values on a single row as integers.
func WriteBValues(path string, bvals []float64) error {
	parts := make([]string, len(bvals))
	for i, b := range bvals {
		parts[i] = strconv.FormatInt(int64(math.Round(b)), 10)
	}
	return writeLines(path, []string{strings.Join(parts, " ")})
}

// WriteBVectors writes vectors as three rows (x, y, z) using the given
// number of decimals.
func WriteBVectors(path string, vectors [][3]float64, decimals int) error {
	lines := make([]string, 3)
	format := fmt.Sprintf("%%.%df", decimals)
	for axis := 0; axis < 3; axis++ {
		parts := make([]string, len(vectors))
		for i, v := range vectors {
			parts[i] = fmt.Sprintf(format, v[axis])
		}
		lines[axis] = strings.Join(parts, " ")
	}
	return writeLines(path, lines)
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "writing '%s'", path)
	}
	return nil
}
