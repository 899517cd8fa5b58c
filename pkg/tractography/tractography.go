package tractography

import (
	"context"
	"path/filepath"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/paramfile"
)

// TrackingOptions are the fiber tracking settings.
type TrackingOptions struct {
	TrackingType string
	BundleMap    string

	// Fiber lengths are in millimeters, the aperture angle in degrees and
	// the forward step in voxels.
	MinFiberLength float64
	MaxFiberLength float64
	ApertureAngle  float64
	ForwardStep    float64

	VoxelSamplerPointCount int
	StoringIncrement       int
	OutputOrientationCount int

	// GibbsTemperature only applies to the probabilistic tracking.
	GibbsTemperature float64
}

// DefaultTrackingOptions returns a regularized deterministic streamline
// tracking writing an AIMS bundle map.
func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{
		TrackingType:           "streamline_regularize_deterministic",
		BundleMap:              "aimsbundlemap",
		MinFiberLength:         5,
		MaxFiberLength:         300,
		ApertureAngle:          30,
		ForwardStep:            0.2,
		VoxelSamplerPointCount: 1,
		GibbsTemperature:       1,
		StoringIncrement:       10,
		OutputOrientationCount: 500,
	}
}

// Validate checks the closed-set options.
func (o TrackingOptions) Validate() error {
	if _, err := bundleMapCodes.Lookup("bundle map format", o.BundleMap); err != nil {
		return err
	}
	_, err := trackingCodes.Lookup("tractography algorithm", o.TrackingType)
	return err
}

// TrackingParams configures Tractography.
type TrackingParams struct {
	OutDir           string
	SubjectID        string
	MaskDir          string
	Model            string
	ModelDir         string
	RegisteredDWIDir string
	TrackingOptions
}

// Tractography tracks fibers in the local model orientation field,
// restricted to the tractography mask.
func Tractography(ctx context.Context, eng engine.Engine, p TrackingParams) (string, error) {
	mask := filepath.Join(p.MaskDir, MaskFile)
	siteMap := filepath.Join(p.ModelDir, p.Model+"_odf_site_map.sitemap")
	textureMap := filepath.Join(p.ModelDir, p.Model+"_odf_texture_map.texturemap")
	rgb := filepath.Join(p.ModelDir, p.Model+"_rgb.ima")
	t1 := filepath.Join(p.RegisteredDWIDir, "t1.ima")
	dwToT1 := filepath.Join(p.RegisteredDWIDir, "dw_to_t1.trm")
	maskToDw := filepath.Join(p.RegisteredDWIDir, "t1_to_dw.trm")
	if err := fsutil.RequireFiles(mask, siteMap, textureMap, rgb, t1, dwToT1, maskToDw); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	params := paramfile.Params{
		"_subjectName":                   p.SubjectID,
		"bundleMapFormat":                bundleMapCodes[p.BundleMap],
		"fileNameMask":                   mask,
		"fileNameOdfSiteMap":             siteMap,
		"fileNameOdfTextureMap":          textureMap,
		"fileNameRgb":                    rgb,
		"fileNameT1":                     t1,
		"fileNameTransformationDwToT1":   dwToT1,
		"fileNameTransformationMaskToDw": maskToDw,
		"outputOrientationCount":         p.OutputOrientationCount,
		"outputWorkDirectory":            p.OutDir,
		"stepCount":                      p.VoxelSamplerPointCount,
		"trackingType":                   trackingCodes[p.TrackingType],

		"regularizedDeterministicLowerGFABoundary": -1.0,
		"regularizedDeterministicUpperGFABoundary": -1.0,
	}
	for _, prefix := range []string{"deterministic", "probabilistic", "regularizedDeterministic"} {
		params[prefix+"ApertureAngle"] = p.ApertureAngle
		params[prefix+"ForwardStep"] = p.ForwardStep
		params[prefix+"MaximumFiberLength"] = p.MaxFiberLength
		params[prefix+"MinimumFiberLength"] = p.MinFiberLength
		params[prefix+"StoringIncrement"] = p.StoringIncrement
		params[prefix+"VoxelSamplerPointCount"] = p.VoxelSamplerPointCount
	}
	params["probabilisticGibbsTemperature"] = p.GibbsTemperature

	return eng.Run(ctx, AlgorithmTracking, params, p.OutDir)
}
