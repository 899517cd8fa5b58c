package preproc

import (
	"context"

	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/paramfile"
)

// EddyMotionParams configures EddyAndMotionCorrection.
type EddyMotionParams struct {
	OutDir       string
	RawDWIDir    string
	RoughMaskDir string

	// CorrectedDir holds the volumes to correct: the susceptibility stage
	// output, or the outlier stage output when susceptibility correction
	// was skipped.
	CorrectedDir string
	SubjectID    string
}

// correctionOptions returns the registration options of the eddy current
// and motion models. Eddy currents are affine and add scaling and shearing
// to the rigid motion parameters.
func correctionOptions(affine bool) paramfile.Params {
	opts := paramfile.Params{
		"applySmoothing":              1,
		"backgroundResamplingLevel":   0,
		"levelCount":                  32,
		"lowerThreshold":              0.0,
		"maximumIterationCount":       1000,
		"maximumTestGradient":         1000.0,
		"maximumTolerance":            0.01,
		"optimizerName":               0,
		"outputResamplingOrder":       3,
		"registrationResamplingOrder": 1,
		"similarityMeasureName":       1,
		"stepSize":                    0.1,
		"stoppingCriterionError":      0.01,
		"subSamplingMaximumSizes":     "64",
	}
	for _, axis := range []string{"X", "Y", "Z"} {
		opts["initialParametersRotation"+axis] = 0
		opts["initialParametersTranslation"+axis] = 0
		opts["optimizerParametersRotation"+axis] = 2
		opts["optimizerParametersTranslation"+axis] = 2
	}
	if !affine {
		return opts
	}
	for _, axis := range []string{"X", "Y", "Z"} {
		opts["initialParametersScaling"+axis] = 1.0
		opts["optimizerParametersScaling"+axis] = 0.01
	}
	for _, plane := range []string{"XY", "XZ", "YZ"} {
		opts["initialParametersShearing"+plane] = 0.0
		opts["optimizerParametersShearing"+plane] = 0.01
	}
	return opts
}

// EddyAndMotionCorrection corrects the eddy current distortions and the
// head motion of the diffusion volumes.
func EddyAndMotionCorrection(ctx context.Context, eng engine.Engine, p EddyMotionParams) (string, error) {
	params := paramfile.Params{
		"rawDwiDirectory":              p.RawDWIDir,
		"roughMaskDirectory":           p.RoughMaskDir,
		"correctedDwiDirectory":        p.CorrectedDir,
		"outputWorkDirectory":          p.OutDir,
		"eddyCurrentCorrection":        2,
		"motionCorrection":             1,
		"_subjectName":                 p.SubjectID,
		"fileNameMotionTransform":      "",
		"eddyCurrentCorrectionOptions": correctionOptions(true),
		"motionCorrectionOptions":      correctionOptions(false),
	}
	return eng.Run(ctx, AlgorithmEddyMotion, params, p.OutDir)
}
