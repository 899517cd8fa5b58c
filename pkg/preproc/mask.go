package preproc

import (
	"context"
	"fmt"
	"path/filepath"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/paramfile"
)

// RoughMaskParams configures RoughMaskExtraction.
type RoughMaskParams struct {
	OutDir    string
	RawDWIDir string
	SubjectID string

	// RegistrationDir and MorphologistDir select the T1 strategy: the mask
	// is derived from the Morphologist brain mask registered to the
	// diffusion space. When RegistrationDir is empty the T2 strategy is
	// used.
	RegistrationDir string
	MorphologistDir string

	// LevelCount is the number of histogram bins, 32 when zero.
	LevelCount int
	// LowerThreshold removes the noise below it before the analysis.
	LowerThreshold float64
	// DisableSmoothing skips the smoothing applied before the histogram
	// analysis.
	DisableSmoothing bool
}

// RoughMaskExtraction computes a rough brain mask of the imported data.
func RoughMaskExtraction(ctx context.Context, eng engine.Engine, p RoughMaskParams) (string, error) {
	params := paramfile.Params{
		"maskClosingRadius":        0.0,
		"maskDilationRadius":       4.0,
		"noiseThresholdPercentage": 2.0,
		"rawDwiDirectory":          p.RawDWIDir,
		"outputWorkDirectory":      p.OutDir,
		"_subjectName":             p.SubjectID,
	}
	levels := p.LevelCount
	if levels == 0 {
		levels = 32
	}
	reg := paramfile.Params(registrationParams(0, false, 5, 30, "64"))
	reg["applySmoothing"] = !p.DisableSmoothing
	reg["floatingLowerThreshold"] = p.LowerThreshold
	reg["levelCount"] = levels

	if p.RegistrationDir == "" {
		params["strategyRoughMaskFromT1"] = 0
		params["strategyRoughMaskFromT2"] = 1
		params["anatomy"] = ""
		params["morphologistBrainMask"] = ""
		params["dwToT1RegistrationParameter"] = reg
		return eng.Run(ctx, AlgorithmRoughMask, params, p.OutDir)
	}

	t1 := filepath.Join(p.RegistrationDir, "t1.ima")
	brainMask := filepath.Join(p.RegistrationDir, "Morphologist", "brain_t1.ima")
	if err := fsutil.RequireFiles(t1, brainMask); err != nil {
		return "", err
	}
	anatomy, err := findMorphologistT1(p.MorphologistDir, p.SubjectID)
	if err != nil {
		return "", err
	}
	hdr, err := convert.ReadNiftiHeader(anatomy)
	if err != nil {
		return "", err
	}
	reg["subSamplingMaximumSizes"] = fmt.Sprintf("64 %d", hdr.MinSpatialDim())

	params["strategyRoughMaskFromT1"] = 1
	params["strategyRoughMaskFromT2"] = 0
	params["anatomy"] = t1
	params["morphologistBrainMask"] = brainMask
	params["dwToT1RegistrationParameter"] = reg
	return eng.Run(ctx, AlgorithmRoughMask, params, p.OutDir)
}

// findMorphologistT1 returns the T1 image of the subject in a Morphologist
// tree. Zero or several candidates is a bad file error.
func findMorphologistT1(morphologistDir, subject string) (string, error) {
	var matches []string
	for _, ext := range []string{".nii", ".nii.gz"} {
		pattern := filepath.Join(morphologistDir, subject, "t1mri", "*", subject+ext)
		found, err := filepath.Glob(pattern)
		if err != nil {
			return "", errdefs.BadFile(pattern)
		}
		matches = append(matches, found...)
	}
	if len(matches) != 1 {
		return "", errdefs.BadFile(filepath.Join(morphologistDir, subject, "t1mri", "*", subject+".nii*"))
	}
	return matches[0], nil
}
