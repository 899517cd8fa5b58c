// Package preproc wraps the Connectomist diffusion preprocessing stages:
// data import and q-space sampling, rough brain masking, outlier slice
// detection, susceptibility correction, eddy current and motion correction,
// and registration to the Morphologist anatomy.
//
// Every stage validates its inputs before the engine is started and
// returns the directory it wrote to. CompletePreprocessing chains the
// stages, passing each output directory explicitly to the next stage.
package preproc

import (
	"path/filepath"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/errdefs"
)

// Stage identifies one step of the preprocessing sequence.
type Stage int

const (
	StageImport Stage = iota + 1
	StageRoughMask
	StageOutliers
	StageSusceptibility
	StageEddyMotion
	StageRegistration
	StageQC
)

// Steps are the stage directory names, in execution order. Downstream
// tooling depends on these exact names.
var Steps = []string{
	"01-Import_and_qspace_model",
	"02-Rough_mask",
	"03-Outliers",
	"04-Suceptibility",
	"05-Eddy_current_and_motion",
	"06-Anatomy_Talairach",
}

// QCStep is the directory of the optional quality check report.
const QCStep = "07-QC_reporting"

// Engine algorithm names.
const (
	AlgorithmImport         = "DWI-Data-Import-And-QSpace-Sampling"
	AlgorithmRoughMask      = "DWI-Rough-Mask-Extraction"
	AlgorithmOutliers       = "DWI-Outlier-Detection"
	AlgorithmSusceptibility = "DWI-Susceptibility-Artifact-Correction"
	AlgorithmEddyMotion     = "DWI-Eddy-Current-And-Motion-Correction"
	AlgorithmRegistration   = "DWI-To-Anatomy-Matching"
	AlgorithmQC             = "DWI-Quality-Check-Reporting"
)

// Dir returns the directory name of the stage.
func (s Stage) Dir() string {
	if s == StageQC {
		return QCStep
	}
	if s >= StageImport && int(s) <= len(Steps) {
		return Steps[s-1]
	}
	return ""
}

// Algorithm returns the engine algorithm run by the stage.
func (s Stage) Algorithm() string {
	switch s {
	case StageImport:
		return AlgorithmImport
	case StageRoughMask:
		return AlgorithmRoughMask
	case StageOutliers:
		return AlgorithmOutliers
	case StageSusceptibility:
		return AlgorithmSusceptibility
	case StageEddyMotion:
		return AlgorithmEddyMotion
	case StageRegistration:
		return AlgorithmRegistration
	case StageQC:
		return AlgorithmQC
	}
	return ""
}

func (s Stage) String() string {
	return s.Dir()
}

// ParseStage maps a directory name such as "02-Rough_mask" to its Stage.
func ParseStage(name string) (Stage, error) {
	for s := StageImport; s <= StageQC; s++ {
		if s.Dir() == name {
			return s, nil
		}
	}
	return 0, errdefs.Validation("Unknown preprocessing step '%s', should be in %v.", name, append(Steps, QCStep))
}

// Float returns a pointer to v, for the optional numeric parameters.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for the optional integer parameters.
func Int(v int) *int {
	return &v
}

// requireStageDir checks that a previous stage left its directory behind.
func requireStageDir(dir, what string) error {
	if !fsutil.IsDir(dir) {
		return errdefs.Pipeline("In '%s' can't detect Connectomist %s folder '%s'.",
			filepath.Dir(dir), what, filepath.Base(dir))
	}
	return nil
}

// registrationParams returns the registration settings shared by the
// stages that align two volumes.
func registrationParams(smoothing int, centerOfGravity bool, rotation, translation int, subSampling string) map[string]interface{} {
	return map[string]interface{}{
		"applySmoothing":                             smoothing,
		"floatingLowerThreshold":                     0.0,
		"initialParametersRotationX":                 0,
		"initialParametersRotationY":                 0,
		"initialParametersRotationZ":                 0,
		"initialParametersScalingX":                  1.0,
		"initialParametersScalingY":                  1.0,
		"initialParametersScalingZ":                  1.0,
		"initialParametersShearingXY":                0.0,
		"initialParametersShearingXZ":                0.0,
		"initialParametersShearingYZ":                0.0,
		"initialParametersTranslationX":              0,
		"initialParametersTranslationY":              0,
		"initialParametersTranslationZ":              0,
		"initializeCoefficientsUsingCenterOfGravity": centerOfGravity,
		"levelCount":                                 32,
		"maximumIterationCount":                      1000,
		"maximumTestGradient":                        1000.0,
		"maximumTolerance":                           0.01,
		"optimizerName":                              0,
		"optimizerParametersRotationX":               rotation,
		"optimizerParametersRotationY":               rotation,
		"optimizerParametersRotationZ":               rotation,
		"optimizerParametersScalingX":                0.05,
		"optimizerParametersScalingY":                0.05,
		"optimizerParametersScalingZ":                0.05,
		"optimizerParametersShearingXY":              0.05,
		"optimizerParametersShearingXZ":              0.05,
		"optimizerParametersShearingYZ":              0.05,
		"optimizerParametersTranslationX":            translation,
		"optimizerParametersTranslationY":            translation,
		"optimizerParametersTranslationZ":            translation,
		"referenceLowerThreshold":                    0.0,
		"resamplingOrder":                            1,
		"similarityMeasureName":                      1,
		"stepSize":                                   0.1,
		"stoppingCriterionError":                     0.01,
		"subSamplingMaximumSizes":                    subSampling,
		"transform3DType":                            0,
	}
}
