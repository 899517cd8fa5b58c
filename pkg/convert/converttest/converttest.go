// Package converttest writes minimal images for tests of code reading
// NIfTI headers.
package converttest

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// NiftiHeader builds a minimal little-endian NIfTI-1 header (352 bytes,
// float32 voxels) with the given dimensions.
func NiftiHeader(dims ...int16) []byte {
	buf := make([]byte, 352)
	binary.LittleEndian.PutUint32(buf[0:], 348)
	binary.LittleEndian.PutUint16(buf[40:], uint16(len(dims)))
	for i, d := range dims {
		binary.LittleEndian.PutUint16(buf[42+2*i:], uint16(d))
	}
	binary.LittleEndian.PutUint16(buf[70:], 16)          // datatype float32
	binary.LittleEndian.PutUint16(buf[72:], 32)          // bitpix
	binary.LittleEndian.PutUint32(buf[108:], 0x43b00000) // vox_offset 352.0
	copy(buf[344:], "n+1\x00")
	return buf
}

// WriteNifti writes a header-only image at path, gzip-compressed when the
// path ends with .gz.
func WriteNifti(t testing.TB, path string, dims ...int16) {
	t.Helper()
	data := NiftiHeader(dims...)
	if strings.HasSuffix(path, ".gz") {
		var gz bytes.Buffer
		zw := gzip.NewWriter(&gz)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("Failed to compress %s: %v", path, err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("Failed to compress %s: %v", path, err)
		}
		data = gz.Bytes()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
