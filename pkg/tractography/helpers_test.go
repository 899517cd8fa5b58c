package tractography_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/engine/enginetest"
	"goconnectomist/pkg/labeling"
	"goconnectomist/pkg/paramfile"
	"goconnectomist/pkg/preproc"
	"goconnectomist/pkg/tractography"
)

const subject = "sub01"

// fakeEngine writes the outputs read by the following stages, then
// behaves like a converter for the PTK tool calls.
func fakeEngine(call enginetest.Call) (*engine.Result, error) {
	outdir := filepath.Dir(call.Flag("-f"))
	var files []string
	switch call.Flag("-p") {
	case tractography.AlgorithmModel:
		model := strings.TrimPrefix(filepath.Base(outdir), tractography.ModelStep(""))
		for _, suffix := range []string{"_gfa.ima", "_md.ima", "_odf_site_map.sitemap", "_odf_texture_map.texturemap", "_rgb.ima"} {
			files = append(files, model+suffix)
		}
	case tractography.AlgorithmMask:
		files = append(files, tractography.MaskFile)
	case tractography.AlgorithmTracking:
		files = append(files, "aims.bundles", "aims.bundlesdata")
	case labeling.Algorithm:
		dir := filepath.Join(labeling.ReferentialDir, "talairach")
		files = append(files, filepath.Join(dir, "Uncinate_Left.bundles"), filepath.Join(dir, "Uncinate_Left.bundlesdata"))
	}
	for _, name := range files {
		path := filepath.Join(outdir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(name), 0644); err != nil {
			return nil, err
		}
	}
	return enginetest.CreateOutput(call)
}

type fixture struct {
	dir             string
	preprocDir      string
	registrationDir string
	morphologistDir string
	runner          *enginetest.Runner
	eng             *engine.Wrapper
	conv            *convert.PTK
}

// newFixture writes the registration outputs of a preprocessing run and
// the Morphologist files of the subject.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	runner := &enginetest.Runner{Handler: fakeEngine}
	dir := t.TempDir()
	f := &fixture{
		dir:             dir,
		preprocDir:      filepath.Join(dir, "preproc"),
		morphologistDir: filepath.Join(dir, "morphologist"),
		runner:          runner,
		eng:             enginetest.NewWrapper(t, runner),
		conv:            convert.NewPTK(engine.NewTools(runner)),
	}
	f.registrationDir = filepath.Join(f.preprocDir, preproc.Steps[5])
	for _, name := range []string{
		"dw_talairach.ima", "mask_talairach.ima", "t1.ima", "t2_talairach.ima",
		"talairach_to_t1.trm", "dw_to_t1.trm", "t1_to_dw.trm",
	} {
		enginetest.Touch(t, filepath.Join(f.registrationDir, name))
	}

	acquisition := preproc.MorphologistAcquisitionDir(f.morphologistDir, subject)
	analysis := filepath.Join(acquisition, "default_analysis")
	enginetest.Touch(t,
		filepath.Join(acquisition, subject+".APC"),
		filepath.Join(analysis, "nobias_"+subject+".han"),
		filepath.Join(analysis, "nobias_"+subject+".nii.gz"),
		filepath.Join(analysis, "segmentation", "voronoi_"+subject+".nii.gz"),
		labeling.T1ToTalairach(f.morphologistDir, subject),
	)
	return f
}

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
