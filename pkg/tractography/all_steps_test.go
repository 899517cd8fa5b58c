package tractography_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconnectomist/internal/models"
	"goconnectomist/pkg/engine/enginetest"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/labeling"
	"goconnectomist/pkg/tractography"
)

func (f *fixture) params() tractography.Params {
	p := tractography.DefaultParams()
	p.OutDir = filepath.Join(f.dir, "tractography")
	p.SubjectID = subject
	p.PreprocDir = f.preprocDir
	p.MorphologistDir = f.morphologistDir
	return p
}

func TestCompleteTractography(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	pl, err := tractography.NewPlan(p)
	require.NoError(t, err)
	p.Plan = pl

	res, err := tractography.CompleteTractography(context.Background(), f.eng, f.conv, p)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{
		tractography.AlgorithmModel,
		tractography.AlgorithmMask,
		tractography.AlgorithmTracking,
		labeling.Algorithm,
	}, f.runner.Algorithms())

	assert.Equal(t, filepath.Join(p.OutDir, "gfa.nii.gz"), res.GFA)
	assert.Equal(t, filepath.Join(p.OutDir, "md.nii.gz"), res.MD)
	assert.Equal(t, filepath.Join(p.OutDir, "mask.nii.gz"), res.Mask)
	assert.Equal(t, []string{filepath.Join(p.OutDir, "bundles", "talairach", "Uncinate_Left.trk")}, res.Bundles)
	for _, path := range append([]string{res.GFA, res.MD, res.Mask}, res.Bundles...) {
		assert.FileExists(t, path)
	}
	assert.Len(t, res.Dirs, 4)
	assert.DirExists(t, res.Dirs[tractography.ModelStep("aqbi")])

	trackingDir := filepath.Join(p.OutDir, "09-Tractography_streamline_regularize_deterministic")
	values := readParams(t, filepath.Join(p.OutDir, labeling.Step), labeling.Algorithm)
	assert.Equal(t, filepath.Join(trackingDir, "aims.bundles"), values["inputBundleMapFileNames"])
	assert.Equal(t, filepath.Join(f.registrationDir, "dw_to_t1.trm"), values["fileNameBundleMapToTalairachTransformation"])

	order, err := pl.Order()
	require.NoError(t, err)
	for _, stage := range order {
		assert.Equal(t, models.StageDone, pl.Status(stage), stage)
	}
}

func TestCompleteTractographyDeleteSteps(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	p.DeleteSteps = true

	res, err := tractography.CompleteTractography(context.Background(), f.eng, f.conv, p)
	require.NoError(t, err)
	assert.Empty(t, res.Dirs)
	for _, step := range []string{tractography.ModelStep("aqbi"), tractography.MaskStep(), labeling.Step} {
		assert.NoDirExists(t, filepath.Join(p.OutDir, step))
	}
	assert.FileExists(t, res.GFA)
	assert.FileExists(t, res.Bundles[0])
}

func TestCompleteTractographyModelOnly(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	p.ModelOnly = true
	p.Model.Model = tractography.ModelDTI
	// Tracking options are not checked when only the model runs.
	p.Tracking.TrackingType = "unknown"
	pl, err := tractography.NewPlan(p)
	require.NoError(t, err)
	p.Plan = pl

	res, err := tractography.CompleteTractography(context.Background(), f.eng, f.conv, p)
	require.NoError(t, err)
	assert.Equal(t, []string{tractography.AlgorithmModel}, f.runner.Algorithms())
	assert.FileExists(t, res.GFA)
	assert.Empty(t, res.Mask)
	assert.Empty(t, res.Bundles)
	assert.Contains(t, res.Dirs, "07-Local_modeling_dti")

	order, err := pl.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"07-Local_modeling_dti", tractography.ExportScalarsStep}, order)
}

func TestCompleteTractographyRequiresRegistration(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	p.PreprocDir = filepath.Join(f.dir, "elsewhere")

	_, err := tractography.CompleteTractography(context.Background(), f.eng, f.conv, p)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindPipeline))
	assert.Contains(t, err.Error(), "06-Anatomy_Talairach")
	assert.Empty(t, f.runner.Calls())
}

func TestCompleteTractographyValidatesFirst(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	p.Labeling.BundleNames = []string{"Nowhere_Left"}

	_, err := tractography.CompleteTractography(context.Background(), f.eng, f.conv, p)
	assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
	assert.Empty(t, f.runner.Calls())
}

func TestCompleteTractographyStageFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.Handler = enginetest.Fail(func(call enginetest.Call) bool {
		return call.Flag("-p") == tractography.AlgorithmTracking
	}, 1, "no seed", fakeEngine)
	p := f.params()
	p.DeleteSteps = true
	pl, err := tractography.NewPlan(p)
	require.NoError(t, err)
	p.Plan = pl

	_, err = tractography.CompleteTractography(context.Background(), f.eng, f.conv, p)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindRuntime))
	assert.Contains(t, err.Error(), "no seed")

	tracking := tractography.TrackingStep(p.Tracking.TrackingType)
	assert.Equal(t, models.StageFailed, pl.Status(tracking))
	assert.Equal(t, models.StagePending, pl.Status(labeling.Step))
	assert.DirExists(t, filepath.Join(p.OutDir, tractography.MaskStep()))
	assert.NotContains(t, f.runner.Algorithms(), labeling.Algorithm)
}
