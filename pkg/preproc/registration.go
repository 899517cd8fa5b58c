package preproc

import (
	"context"
	"path/filepath"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/paramfile"
)

// RegistrationParams configures DWIToAnatomy.
type RegistrationParams struct {
	OutDir          string
	CorrectedDWIDir string
	RoughMaskDir    string
	MorphologistDir string
	SubjectID       string
}

// MorphologistAcquisitionDir returns the default acquisition directory of
// a subject in a Morphologist tree.
func MorphologistAcquisitionDir(morphologistDir, subject string) string {
	return filepath.Join(morphologistDir, subject, "t1mri", "default_acquisition")
}

// DWIToAnatomy registers the corrected diffusion data to the Morphologist
// T1 image and its Talairach frame.
func DWIToAnatomy(ctx context.Context, eng engine.Engine, p RegistrationParams) (string, error) {
	acquisition := MorphologistAcquisitionDir(p.MorphologistDir, p.SubjectID)
	apc := filepath.Join(acquisition, p.SubjectID+".APC")
	t1 := filepath.Join(acquisition, p.SubjectID+".nii.gz")
	if err := fsutil.RequireFiles(apc, t1); err != nil {
		return "", err
	}

	params := paramfile.Params{
		"dwToT1RegistrationParameter":         paramfile.Params(registrationParams(1, true, 5, 30, "64")),
		"_subjectName":                        p.SubjectID,
		"anteriorPosteriorAdditionSliceCount": 0,
		"correctedDwiDirectory":               p.CorrectedDWIDir,
		"fileNameACP":                         apc,
		"fileNameDwToT1Transformation":        "",
		"fileNameT1":                          t1,
		"generateDwToT1Transformation":        1,
		"headFootAdditionSliceCount":          0,
		"importDwToT1Transformation":          0,
		"leftRightAdditionSliceCount":         0,
		"outputWorkDirectory":                 p.OutDir,
		"roughMaskDirectory":                  p.RoughMaskDir,
	}
	for _, cropping := range []string{"AnteriorY", "FootZ", "HeadZ", "LeftX", "PosteriorY", "RightX"} {
		params["t1"+cropping+"Cropping"] = 0
	}
	return eng.Run(ctx, AlgorithmRegistration, params, p.OutDir)
}
