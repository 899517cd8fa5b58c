package convert

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/henghuang/nifti"
	"github.com/pkg/errors"

	"goconnectomist/pkg/errdefs"
)

// niftiHeaderSize is the size of a NIfTI-1 header plus its extension flag.
const niftiHeaderSize = 352

// Header is the part of a NIfTI-1 header the pipeline inspects.
type Header struct {
	// Dims holds the size of each dimension, Dims[0] being x.
	Dims []int
}

// VolumeCount returns the number of volumes along the fourth dimension.
func (h *Header) VolumeCount() int {
	if len(h.Dims) < 4 {
		return 1
	}
	return h.Dims[3]
}

// MinSpatialDim returns the smallest of the spatial dimensions.
func (h *Header) MinSpatialDim() int {
	smallest := 0
	for i, d := range h.Dims {
		if i >= 3 {
			break
		}
		if smallest == 0 || d < smallest {
			smallest = d
		}
	}
	return smallest
}

// ReadNiftiHeader reads the header of a .nii or .nii.gz image. Unreadable
// or malformed headers are bad file errors.
func ReadNiftiHeader(path string) (*Header, error) {
	if err := requireFiles(path); err != nil {
		return nil, err
	}
	headerPath := path
	if strings.HasSuffix(path, ".gz") {
		tmp, err := extractHeader(path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		headerPath = tmp
	}

	hdr, err := safelyParseHeader(headerPath)
	if err != nil {
		return nil, errdefs.BadFile(path)
	}
	ndim := int(hdr.Dim[0])
	if ndim < 1 || ndim > 7 {
		return nil, errdefs.BadFile(path)
	}
	dims := make([]int, ndim)
	for i := range dims {
		dims[i] = int(hdr.Dim[i+1])
		if dims[i] < 1 {
			return nil, errdefs.BadFile(path)
		}
	}
	return &Header{Dims: dims}, nil
}

// safelyParseHeader turns the panics raised by the nifti library on
// malformed input into errors.
func safelyParseHeader(path string) (hdr nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	hdr.LoadHeader(path)
	return hdr, nil
}

// extractHeader copies the uncompressed header of a .nii.gz image to a
// temporary .nii file.
func extractHeader(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errdefs.BadFile(path)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", errdefs.BadFile(path)
	}
	defer zr.Close()

	header := make([]byte, niftiHeaderSize)
	n, err := io.ReadFull(zr, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", errdefs.BadFile(path)
	}

	tmp, err := os.CreateTemp("", "nifti-header-*.nii")
	if err != nil {
		return "", errors.Wrap(err, "creating temporary header file")
	}
	defer tmp.Close()
	if _, err := tmp.Write(header[:n]); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "writing temporary header file")
	}
	return tmp.Name(), nil
}
