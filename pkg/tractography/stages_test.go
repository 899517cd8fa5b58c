package tractography_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/tractography"
)

func TestDWILocalModeling(t *testing.T) {
	f := newFixture(t)
	outdir := filepath.Join(f.dir, tractography.ModelStep("aqbi"))
	opts := tractography.DefaultModelOptions()
	opts.ConstrainedSD = true

	got, err := tractography.DWILocalModeling(context.Background(), f.eng, tractography.ModelParams{
		OutDir:           outdir,
		RegisteredDWIDir: f.registrationDir,
		SubjectID:        subject,
		ModelOptions:     opts,
	})
	require.NoError(t, err)
	assert.Equal(t, outdir, got)

	values := readParams(t, outdir, tractography.AlgorithmModel)
	assert.Equal(t, int64(5), values["odfType"])
	assert.Equal(t, int64(5), values["viewType"])
	assert.Equal(t, int64(4), values["aqbiMaximumSHOrder"])
	assert.Equal(t, int64(4), values["sdtMaximumSHOrder"])
	assert.Equal(t, 0.006, values["saAqbiRegularizationLcurveFactor"])
	assert.Equal(t, 0.006, values["sdtRegularizationLcurveFactor"])
	assert.Equal(t, int64(1), values["sdUseCSD"])
	assert.Equal(t, int64(0), values["sdtKernelType"])
	assert.Equal(t, 0.65, values["sdKernelLowerFAThreshold"])
	assert.Equal(t, int64(300), values["sdtKernelVoxelCount"])
	assert.Equal(t, 1.0, values["rgbScale"])
	assert.Equal(t, int64(500), values["outputOrientationCount"])
	assert.Equal(t, 25.0, values["dotEffectiveDiffusionTime"])
	assert.Equal(t, filepath.Join(f.registrationDir, "talairach_to_t1.trm"), values["fileNameTransformationDwToT1"])
	assert.Equal(t, subject, values["_subjectName"])
}

func TestDWILocalModelingValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *tractography.ModelOptions)
	}{
		{"model", func(o *tractography.ModelOptions) { o.Model = "dsi" }},
		{"estimator", func(o *tractography.ModelOptions) { o.DTIEstimator = "robust" }},
		{"kernel", func(o *tractography.ModelOptions) { o.SDKernelType = "gaussian" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			opts := tractography.DefaultModelOptions()
			tt.modify(&opts)

			_, err := tractography.DWILocalModeling(context.Background(), f.eng, tractography.ModelParams{
				OutDir:           filepath.Join(f.dir, "model"),
				RegisteredDWIDir: f.registrationDir,
				SubjectID:        subject,
				ModelOptions:     opts,
			})
			assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
			assert.Empty(t, f.runner.Calls())
		})
	}
}

func TestDWILocalModelingMissingFile(t *testing.T) {
	f := newFixture(t)
	mask := filepath.Join(f.registrationDir, "mask_talairach.ima")
	require.NoError(t, os.Remove(mask))
	require.NoError(t, os.Remove(filepath.Join(f.registrationDir, "t1.ima")))

	opts := tractography.DefaultModelOptions()
	opts.Model = "unknown"
	_, err := tractography.DWILocalModeling(context.Background(), f.eng, tractography.ModelParams{
		OutDir:           filepath.Join(f.dir, "model"),
		RegisteredDWIDir: f.registrationDir,
		ModelOptions:     opts,
	})
	e, ok := errdefs.As(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.KindBadFile, e.Kind)
	assert.Equal(t, mask, e.Path)
}

func TestExportScalarsToNifti(t *testing.T) {
	f := newFixture(t)
	modelDir := filepath.Join(f.dir, "model")
	_, err := tractography.ExportScalarsToNifti(context.Background(), f.conv, modelDir, "dti", f.dir)
	assert.True(t, errdefs.IsKind(err, errdefs.KindBadFile))

	require.NoError(t, os.MkdirAll(modelDir, 0755))
	for _, name := range []string{"dti_gfa.ima", "dti_md.ima"} {
		require.NoError(t, os.WriteFile(filepath.Join(modelDir, name), []byte(name), 0644))
	}
	scalars, err := tractography.ExportScalarsToNifti(context.Background(), f.conv, modelDir, "dti", filepath.Join(f.dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "out", "gfa.nii.gz"), scalars.GFA)
	assert.Equal(t, filepath.Join(f.dir, "out", "md.nii.gz"), scalars.MD)
	assert.FileExists(t, scalars.GFA)
	assert.FileExists(t, scalars.MD)
}

func TestTractographyMask(t *testing.T) {
	f := newFixture(t)
	outdir := filepath.Join(f.dir, tractography.MaskStep())

	_, err := tractography.TractographyMask(context.Background(), f.eng, tractography.MaskParams{
		OutDir:          outdir,
		SubjectID:       subject,
		MorphologistDir: f.morphologistDir,
		MaskOptions:     tractography.MaskOptions{AddCommissures: true},
	})
	require.NoError(t, err)

	values := readParams(t, outdir, tractography.AlgorithmMask)
	assert.Equal(t, int64(0), values["addCerebellum"])
	assert.Equal(t, int64(2), values["addCommissures"])
	assert.Equal(t, int64(2), values["removeTemporaryFiles"])
	assert.Equal(t, "", values["fileNameROIMaskToAdd"])
	assert.Contains(t, values["fileNameVoronoiMask"], "voronoi_"+subject+".nii.gz")
}

func TestTractographyMaskMissingMorphologist(t *testing.T) {
	f := newFixture(t)
	_, err := tractography.TractographyMask(context.Background(), f.eng, tractography.MaskParams{
		OutDir:          filepath.Join(f.dir, "mask"),
		SubjectID:       "sub02",
		MorphologistDir: f.morphologistDir,
	})
	e, ok := errdefs.As(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.KindBadFile, e.Kind)
	assert.Equal(t, "sub02.APC", filepath.Base(e.Path))
	assert.Empty(t, f.runner.Calls())
}

func TestExportMaskToNifti(t *testing.T) {
	f := newFixture(t)
	maskDir := filepath.Join(f.dir, "mask")
	_, err := tractography.ExportMaskToNifti(context.Background(), f.conv, maskDir, "", "")
	assert.True(t, errdefs.IsKind(err, errdefs.KindBadFile))

	require.NoError(t, os.MkdirAll(maskDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(maskDir, tractography.MaskFile), []byte("mask"), 0644))

	got, err := tractography.ExportMaskToNifti(context.Background(), f.conv, maskDir, "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(maskDir, "mask.nii.gz"), got)

	got, err = tractography.ExportMaskToNifti(context.Background(), f.conv, maskDir, filepath.Join(f.dir, "out"), "wm")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "out", "wm.nii.gz"), got)
}

// writeModelOutputs writes the files the tracking reads from the model
// and mask directories.
func writeModelOutputs(t *testing.T, modelDir, maskDir, model string) {
	t.Helper()
	for _, path := range []string{
		filepath.Join(maskDir, tractography.MaskFile),
		filepath.Join(modelDir, model+"_odf_site_map.sitemap"),
		filepath.Join(modelDir, model+"_odf_texture_map.texturemap"),
		filepath.Join(modelDir, model+"_rgb.ima"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
}

func TestTractography(t *testing.T) {
	f := newFixture(t)
	modelDir, maskDir := filepath.Join(f.dir, "model"), filepath.Join(f.dir, "mask")
	writeModelOutputs(t, modelDir, maskDir, "aqbi")
	opts := tractography.DefaultTrackingOptions()
	opts.TrackingType = "streamline_probabilistic"
	opts.BundleMap = "trkbundlemap"
	opts.GibbsTemperature = 2
	outdir := filepath.Join(f.dir, tractography.TrackingStep(opts.TrackingType))

	_, err := tractography.Tractography(context.Background(), f.eng, tractography.TrackingParams{
		OutDir:           outdir,
		SubjectID:        subject,
		MaskDir:          maskDir,
		Model:            "aqbi",
		ModelDir:         modelDir,
		RegisteredDWIDir: f.registrationDir,
		TrackingOptions:  opts,
	})
	require.NoError(t, err)
	assert.Equal(t, "09-Tractography_streamline_probabilistic", filepath.Base(outdir))

	values := readParams(t, outdir, tractography.AlgorithmTracking)
	assert.Equal(t, int64(2), values["trackingType"])
	assert.Equal(t, int64(3), values["bundleMapFormat"])
	assert.Equal(t, int64(1), values["stepCount"])
	assert.Equal(t, 2.0, values["probabilisticGibbsTemperature"])
	assert.Equal(t, 30.0, values["deterministicApertureAngle"])
	assert.Equal(t, 300.0, values["regularizedDeterministicMaximumFiberLength"])
	assert.Equal(t, -1.0, values["regularizedDeterministicLowerGFABoundary"])
	assert.Equal(t, int64(10), values["probabilisticStoringIncrement"])
	assert.Equal(t, filepath.Join(f.registrationDir, "t1_to_dw.trm"), values["fileNameTransformationMaskToDw"])
	assert.Equal(t, filepath.Join(modelDir, "aqbi_rgb.ima"), values["fileNameRgb"])
}

func TestTractographyValidation(t *testing.T) {
	f := newFixture(t)
	modelDir, maskDir := filepath.Join(f.dir, "model"), filepath.Join(f.dir, "mask")
	writeModelOutputs(t, modelDir, maskDir, "aqbi")

	for _, opts := range []tractography.TrackingOptions{
		{TrackingType: "streamline_deterministic", BundleMap: "vtk"},
		{TrackingType: "fiber_assignment", BundleMap: "bundlemap"},
	} {
		_, err := tractography.Tractography(context.Background(), f.eng, tractography.TrackingParams{
			OutDir:           filepath.Join(f.dir, "tracks"),
			MaskDir:          maskDir,
			Model:            "aqbi",
			ModelDir:         modelDir,
			RegisteredDWIDir: f.registrationDir,
			TrackingOptions:  opts,
		})
		assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
	}

	_, err := tractography.Tractography(context.Background(), f.eng, tractography.TrackingParams{
		OutDir:           filepath.Join(f.dir, "tracks"),
		MaskDir:          maskDir,
		Model:            "sd",
		ModelDir:         modelDir,
		RegisteredDWIDir: f.registrationDir,
		TrackingOptions:  tractography.DefaultTrackingOptions(),
	})
	e, ok := errdefs.As(err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(modelDir, "sd_odf_site_map.sitemap"), e.Path)
	assert.Empty(t, f.runner.Calls())
}

func TestClosedSets(t *testing.T) {
	assert.Equal(t, []string{"aqbi", "dot", "dti", "sa-aqbi", "sd", "sdt"}, tractography.Models())
	assert.Equal(t, []string{"linear", "positive"}, tractography.Estimators())
	assert.Equal(t, []string{"normal", "symmetric_tensor"}, tractography.Kernels())
	assert.Len(t, tractography.BundleMapFormats(), 4)
	assert.Len(t, tractography.TrackingTypes(), 3)
	assert.Equal(t, "07-Local_modeling_sdt", tractography.ModelStep("sdt"))
}
