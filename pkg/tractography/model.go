package tractography

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/paramfile"
)

const sdFilterCoefficients = "1 1 1 0.5 0.1 0.02 0.002 0.0005 0.0001 0.00010.00001 0.00001 " +
	"0.00001 0.00001 0.00001 0.00001 0.00001"

// ModelOptions are the local modeling settings.
type ModelOptions struct {
	Model string

	// Order bounds the number of fiber crossings the model resolves. It
	// has no effect on dti, a second order model by definition.
	Order int

	// LaplaceBeltramiSharpening applies to aqbi and sa-aqbi.
	LaplaceBeltramiSharpening float64

	// RegularizationLCurve applies to sdt, aqbi and sa-aqbi.
	RegularizationLCurve float64

	DTIEstimator string

	ConstrainedSD      bool
	SDKernelType       string
	SDKernelLowerFA    float64
	SDKernelUpperFA    float64
	SDKernelVoxelCount int

	RGBScale               float64
	OutputOrientationCount int
}

// DefaultModelOptions returns an order 4 analytical Q-ball model.
func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		Model:                  ModelAQBI,
		Order:                  4,
		RegularizationLCurve:   0.006,
		DTIEstimator:           "linear",
		SDKernelType:           "symmetric_tensor",
		SDKernelLowerFA:        0.65,
		SDKernelUpperFA:        0.85,
		SDKernelVoxelCount:     300,
		RGBScale:               1.0,
		OutputOrientationCount: 500,
	}
}

// Validate checks the closed-set options.
func (o ModelOptions) Validate() error {
	if _, err := modelCodes.Lookup("local DWI model", o.Model); err != nil {
		return err
	}
	if _, err := estimatorCodes.Lookup("dti estimator", o.DTIEstimator); err != nil {
		return err
	}
	_, err := kernelCodes.Lookup("kernel", o.SDKernelType)
	return err
}

// ModelParams configures DWILocalModeling.
type ModelParams struct {
	OutDir           string
	RegisteredDWIDir string
	SubjectID        string
	ModelOptions
}

// DWILocalModeling estimates the local diffusion model of the registered
// data.
func DWILocalModeling(ctx context.Context, eng engine.Engine, p ModelParams) (string, error) {
	dw := filepath.Join(p.RegisteredDWIDir, "dw_talairach.ima")
	mask := filepath.Join(p.RegisteredDWIDir, "mask_talairach.ima")
	t1 := filepath.Join(p.RegisteredDWIDir, "t1.ima")
	t2 := filepath.Join(p.RegisteredDWIDir, "t2_talairach.ima")
	dwToT1 := filepath.Join(p.RegisteredDWIDir, "talairach_to_t1.trm")
	if err := fsutil.RequireFiles(dw, mask, t1, t2, dwToT1); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	model := modelCodes[p.Model]
	kernel := kernelCodes[p.SDKernelType]
	useCSD := 0
	if p.ConstrainedSD {
		useCSD = 1
	}

	params := paramfile.Params{
		"_subjectName":                 p.SubjectID,
		"odfType":                      model,
		"viewType":                     model,
		"computeOdfVolume":             0,
		"rgbScale":                     p.RGBScale,
		"outputOrientationCount":       p.OutputOrientationCount,
		"outputWorkDirectory":          p.OutDir,
		"fileNameDw":                   dw,
		"fileNameMask":                 mask,
		"fileNameT1":                   t1,
		"fileNameT2":                   t2,
		"fileNameTransformationDwToT1": dwToT1,

		"dotEffectiveDiffusionTime": 25.0,
		"dotMaximumSHOrder":         p.Order,
		"dotOdfComputation":         2,
		"dotR0":                     12.0,

		"dsiFilteringDataBeforeFFT": 2,
		"dsiMarginalOdf":            2,
		"dsiMaximumR0":              15.0,
		"dsiMinimumR0":              1.0,

		"dtiEstimatorType": estimatorCodes[p.DTIEstimator],

		"qbiEquatorPointCount":       50,
		"qbiPhiFunctionAngle":        0.0,
		"qbiPhiFunctionMaximumAngle": 0.0,
		"qbiPhiFunctionType":         0,

		"sdFilterCoefficients": sdFilterCoefficients,
	}
	for _, prefix := range []string{"aqbi", "saAqbi"} {
		params[prefix+"LaplaceBeltramiSharpeningFactor"] = p.LaplaceBeltramiSharpening
		params[prefix+"MaximumSHOrder"] = p.Order
		params[prefix+"RegularizationLcurveFactor"] = p.RegularizationLCurve
	}
	for _, prefix := range []string{"sd", "sdt"} {
		params[prefix+"KernelLowerFAThreshold"] = p.SDKernelLowerFA
		params[prefix+"KernelType"] = kernel
		params[prefix+"KernelUpperFAThreshold"] = p.SDKernelUpperFA
		params[prefix+"KernelVoxelCount"] = p.SDKernelVoxelCount
		params[prefix+"MaximumSHOrder"] = p.Order
		params[prefix+"UseCSD"] = useCSD
	}
	params["sdtRegularizationLcurveFactor"] = p.RegularizationLCurve

	return eng.Run(ctx, AlgorithmModel, params, p.OutDir)
}

// Scalars are the NIfTI exports of the model scalar maps.
type Scalars struct {
	GFA string
	MD  string
}

// ExportScalarsToNifti converts the generalized fractional anisotropy and
// mean diffusivity maps of model to gfa.nii.gz and md.nii.gz in outdir.
func ExportScalarsToNifti(ctx context.Context, conv convert.Converter, modelDir, model, outdir string) (*Scalars, error) {
	gfa := filepath.Join(modelDir, model+"_gfa.ima")
	md := filepath.Join(modelDir, model+"_md.ima")
	if err := fsutil.RequireFiles(gfa, md); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating '%s'", outdir)
	}

	var out Scalars
	var err error
	if out.GFA, err = conv.GisToNifti(ctx, gfa, filepath.Join(outdir, "gfa.nii.gz")); err != nil {
		return nil, err
	}
	if out.MD, err = conv.GisToNifti(ctx, md, filepath.Join(outdir, "md.nii.gz")); err != nil {
		return nil, err
	}
	return &out, nil
}
