package preproc_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/convert/converttest"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/engine/enginetest"
	"goconnectomist/pkg/paramfile"
	"goconnectomist/pkg/preproc"
)

const subject = "sub01"

// fakeEngine writes the files the next stages read, then behaves like a
// converter for the PTK tool calls.
func fakeEngine(manufacturer string) enginetest.Handler {
	return func(call enginetest.Call) (*engine.Result, error) {
		outdir := filepath.Dir(call.Flag("-f"))
		files := map[string]string{}
		switch call.Flag("-p") {
		case preproc.AlgorithmImport:
			files["acquisition_parameters.py"] = "acquisitionParameters = {'manufacturer': '" + manufacturer + " Medical'}\n"
		case preproc.AlgorithmOutliers:
			files["outliers.py"] = "outliers = {}\n"
		case preproc.AlgorithmEddyMotion:
			files["t2_wo_eddy_current_and_motion.ima"] = "t2"
			files["dw_wo_eddy_current_and_motion.ima"] = "dw"
			files["dw_wo_eddy_current_and_motion.ima.minf"] = `attributes = {
    'bvalues': [1000, 1000, 1000],
    'diffusion_gradient_orientations': [[2.0, 0.0, 0.0], [0.0, 0.5, 0.0], [0.0, 3.0, 4.0]],
}
`
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(outdir, name), []byte(content), 0644); err != nil {
				return nil, err
			}
		}
		return enginetest.CreateOutput(call)
	}
}

type fixture struct {
	dir    string
	runner *enginetest.Runner
	eng    *engine.Wrapper
	conv   *convert.PTK
	inputs preproc.InputFiles
}

func newFixture(t *testing.T, manufacturer string) *fixture {
	t.Helper()
	runner := &enginetest.Runner{Handler: fakeEngine(manufacturer)}
	f := &fixture{
		dir:    t.TempDir(),
		runner: runner,
		eng:    enginetest.NewWrapper(t, runner),
		conv:   convert.NewPTK(engine.NewTools(runner)),
	}
	f.inputs = writeInputs(t, filepath.Join(f.dir, "inputs"), "0 0 1000 1000 1000")
	return f
}

// writeInputs writes a five volume acquisition with its gradient files
// and field maps.
func writeInputs(t *testing.T, dir, bvals string) preproc.InputFiles {
	t.Helper()
	in := preproc.InputFiles{
		DWI:         filepath.Join(dir, "dwi.nii.gz"),
		BVal:        filepath.Join(dir, "dwi.bval"),
		BVec:        filepath.Join(dir, "dwi.bvec"),
		B0Magnitude: filepath.Join(dir, "b0_magnitude.nii.gz"),
		B0Phase:     filepath.Join(dir, "b0_phase.nii.gz"),
	}
	converttest.WriteNifti(t, in.DWI, 4, 4, 4, 5)
	converttest.WriteNifti(t, in.B0Magnitude, 4, 4, 4)
	converttest.WriteNifti(t, in.B0Phase, 4, 4, 4)
	require.NoError(t, os.WriteFile(in.BVal, []byte(bvals+"\n"), 0644))
	require.NoError(t, os.WriteFile(in.BVec, []byte("0 0 1 0 0\n0 0 0 1 0\n0 0 0 0 1\n"), 0644))
	return in
}

// readParams decodes the parameterValues of the parameter file written in
// outdir for algorithm.
func readParams(t *testing.T, outdir, algorithm string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outdir, algorithm+".py"))
	require.NoError(t, err)
	bindings, err := paramfile.Decode(data)
	require.NoError(t, err)
	require.Equal(t, algorithm, bindings["algorithmName"])
	values, ok := bindings["parameterValues"].(map[string]interface{})
	require.True(t, ok)
	return values
}

// writeMorphologist creates the Morphologist files of the subject.
func writeMorphologist(t *testing.T, dir string) string {
	t.Helper()
	acquisition := preproc.MorphologistAcquisitionDir(dir, subject)
	enginetest.Touch(t, filepath.Join(acquisition, subject+".APC"))
	converttest.WriteNifti(t, filepath.Join(acquisition, subject+".nii.gz"), 256, 240, 176)
	return dir
}
