package paramfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconnectomist/pkg/errdefs"
)

func TestEncodeConfig(t *testing.T) {
	params := Params{
		"outputWorkDirectory": "/out/03-Outliers",
		"outlierFactor":       3.0,
		"_subjectName":        "jdoe",
		"discardedOrientationList": "",
		"nested": Params{
			"levelCount":     32,
			"applySmoothing": true,
			"stepSize":       0.1,
		},
		"missing": nil,
	}

	data, err := EncodeConfig("DWI-Outlier-Detection", params)
	require.NoError(t, err)

	want := `algorithmName = 'DWI-Outlier-Detection'
parameterValues = {
 '_subjectName': 'jdoe',
 'discardedOrientationList': '',
 'missing': None,
 'nested': {
  'applySmoothing': True,
  'levelCount': 32,
  'stepSize': 0.1
 },
 'outlierFactor': 3.0,
 'outputWorkDirectory': '/out/03-Outliers'
}
`
	assert.Equal(t, want, string(data))
}

func TestEncodedConfigDecodes(t *testing.T) {
	params := Params{
		"fileNameDwi": "/raw/it's/dwi.ima",
		"qSpaceTransform_xx": 1.0,
		"numberOfT2":         int64(3),
		"sdKernelLowerFAThreshold": 0.65,
		"tiny":               0.00001,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteConfig(&buf, "DWI-Data-Import-And-QSpace-Sampling", params))

	bindings, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "DWI-Data-Import-And-QSpace-Sampling", bindings["algorithmName"])

	values, ok := bindings["parameterValues"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/raw/it's/dwi.ima", values["fileNameDwi"])
	assert.Equal(t, 1.0, values["qSpaceTransform_xx"])
	assert.Equal(t, int64(3), values["numberOfT2"])
	assert.Equal(t, 0.65, values["sdKernelLowerFAThreshold"])
	assert.Equal(t, 0.00001, values["tiny"])
}

func TestLiteralFloats(t *testing.T) {
	tests := map[float64]string{
		1.0:    "1.0",
		1000.0: "1000.0",
		0.006:  "0.006",
		-2.5:   "-2.5",
		1e-05:  "1e-05",
		0:      "0.0",
	}
	for in, want := range tests {
		got, err := Literal(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEncodeRejectsUnsupportedTypes(t *testing.T) {
	_, err := EncodeConfig("alg", Params{"bad": struct{}{}})
	assert.Error(t, err)
}

func TestDecodeLiterals(t *testing.T) {
	src := `# generated
attributes = {
    'bvalues' : [ 1500.0, 1500, ],
    'voxel_size' : ( 2.0, 2.0, 2.0 ),
    'referentials' : [ 'Scanner-based anatomical coordinates' ],
    'flag' : True, 'other' : None,
    "joined" : 'a' "b",
    'neg' : -3,
}
count = 10L
`
	bindings, err := Decode([]byte(src))
	require.NoError(t, err)

	attrs := bindings["attributes"].(map[string]interface{})
	assert.Equal(t, []interface{}{1500.0, int64(1500)}, attrs["bvalues"])
	assert.Equal(t, []interface{}{2.0, 2.0, 2.0}, attrs["voxel_size"])
	assert.Equal(t, true, attrs["flag"])
	assert.Nil(t, attrs["other"])
	assert.Equal(t, "ab", attrs["joined"])
	assert.Equal(t, int64(-3), attrs["neg"])
	assert.Equal(t, int64(10), bindings["count"])
}

func TestDecodeRejectsCode(t *testing.T) {
	for _, src := range []string{
		"x = __import__('os').system('rm -rf /')",
		"x = open('/etc/passwd')",
		"x = 1 + 2",
		"x = {1: 'a'}",
		"x = 'unterminated",
		"import os",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Decode([]byte(src))
			var syntaxErr *SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadMinf(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dw.ima.minf", `attributes = {
  'bvalues': [1500.0, 1500.0],
  'diffusion_gradient_orientations': [[1, 0, 0], [0.0, 2.0, 0.0]],
  'sizeX': 128,
}`)

	minf, err := ReadMinf(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1500, 1500}, minf.BValues)
	assert.Equal(t, [][3]float64{{1, 0, 0}, {0, 2, 0}}, minf.Orientations)
}

func TestReadMinfBadFiles(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"no_bvalues.minf":      `attributes = {'diffusion_gradient_orientations': [[1, 0, 0]]}`,
		"no_orientations.minf": `attributes = {'bvalues': [1000]}`,
		"short_vector.minf":    `attributes = {'bvalues': [1000], 'diffusion_gradient_orientations': [[1, 0]]}`,
		"mismatch.minf":        `attributes = {'bvalues': [1000, 1000], 'diffusion_gradient_orientations': [[1, 0, 0]]}`,
		"code.minf":            `attributes = dict(bvalues=[1000])`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name, content)
			_, err := ReadMinf(path)
			require.Error(t, err)
			e, ok := errdefs.As(err)
			require.True(t, ok)
			assert.Equal(t, errdefs.KindBadFile, e.Kind)
			assert.Equal(t, path, e.Path)
		})
	}

	_, err := ReadMinf(filepath.Join(dir, "absent.minf"))
	assert.True(t, errdefs.IsKind(err, errdefs.KindBadFile))
}

func TestReadAcquisitionParameters(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "acquisition_parameters.py",
		"acquisitionParameters = {'manufacturer': 'Siemens Healthineers', 'sliceAxis': 2}\n")

	manufacturer, err := ReadAcquisitionParameters(path)
	require.NoError(t, err)
	assert.Equal(t, "Siemens", manufacturer)

	bad := writeFile(t, dir, "broken.py", "acquisitionParameters = {'sliceAxis': 2}\n")
	_, err = ReadAcquisitionParameters(bad)
	assert.True(t, errdefs.IsKind(err, errdefs.KindBadFile))
}

func TestCodesLookup(t *testing.T) {
	codes := Codes{"linear": 0, "positive": 1}
	code, err := codes.Lookup("estimator", "positive")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	_, err = codes.Lookup("estimator", "robust")
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
	assert.Contains(t, err.Error(), "[linear positive]")

	assert.Equal(t, 2, Bool(true))
	assert.Equal(t, 0, Bool(false))
}
