package preproc

import (
	"context"

	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/paramfile"
)

// QCParams configures QCReporting. Every directory is the output of the
// matching preprocessing stage.
type QCParams struct {
	OutDir            string
	RawDWIDir         string
	RegistrationDir   string
	RoughMaskDir      string
	OutliersDir       string
	SusceptibilityDir string
	EddyMotionDir     string
	SubjectID         string
	ProjectName       string
	TimeStep          string
}

// QCReporting generates the engine quality check report of a
// preprocessing run.
func QCReporting(ctx context.Context, eng engine.Engine, p QCParams) (string, error) {
	params := paramfile.Params{
		"_subjectName":                                  p.SubjectID,
		"directoryNameDataImportAndQSpaceSampling":      p.RawDWIDir,
		"directoryNameEddyCurrentAndMotion":             p.EddyMotionDir,
		"directoryNameOutlierDetection":                 p.OutliersDir,
		"directoryNameRoughMask":                        p.RoughMaskDir,
		"directoryNameSusceptibilityArtifactCorrection": p.SusceptibilityDir,
		"directoryNameToAnatomyMatching":                p.RegistrationDir,
		"outputWorkDirectory":                           p.OutDir,
		"projectName":                                   p.ProjectName,
		"subjectName":                                   p.SubjectID,
		"timeStep":                                      p.TimeStep,
	}
	return eng.Run(ctx, AlgorithmQC, params, p.OutDir)
}
