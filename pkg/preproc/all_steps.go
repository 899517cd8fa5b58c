package preproc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"goconnectomist/internal/fsutil"
	"goconnectomist/internal/logger"
	"goconnectomist/internal/models"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/plan"
)

// Params configures CompletePreprocessing.
type Params struct {
	OutDir       string
	SubjectID    string
	Inputs       InputFiles
	Manufacturer string

	InvertX bool
	InvertY bool
	InvertZ bool

	// MinBValue is forwarded to the gradient table reader.
	MinBValue float64

	// Field map parameters, see SusceptibilityParams.
	DeltaTE                    *float64
	PartialFourierFactor       *float64
	ParallelAccelerationFactor *int
	NegativeSign               bool
	EchoSpacing                *float64
	EPIFactor                  *int
	B0Field                    *float64
	WaterFatShift              *float64

	// SkipSusceptibility corrects the eddy currents directly from the
	// outlier filtered data, for acquisitions without field maps.
	SkipSusceptibility bool

	// MorphologistDir enables the registration to the anatomy.
	MorphologistDir string

	// QC enables the quality check report. It needs the registration.
	QC *QCOptions

	// StopAfter ends the run after the given stage. Zero runs every stage.
	StopAfter Stage

	// DeleteSteps removes the intermediate stage directories once every
	// stage succeeded.
	DeleteSteps bool

	// Plan, when set, receives the stage statuses. It should come from
	// NewPlan with the same parameters.
	Plan *plan.Plan
}

// QCOptions are the report fields of the quality check stage.
type QCOptions struct {
	ProjectName string
	TimeStep    string
}

// DefaultParams returns parameters with the defaults of the command line:
// x axis inverted and the Philips field map defaults.
func DefaultParams() Params {
	return Params{
		InvertX:       true,
		B0Field:       Float(DefaultB0Field),
		WaterFatShift: Float(DefaultWaterFatShift),
	}
}

// Result lists the files of a preprocessing run.
type Result struct {
	RunID string

	// DWI, BVal and BVec are the corrected data, empty when the run
	// stopped before the eddy current correction.
	DWI  string
	BVal string
	BVec string

	// Outliers is the copy of the outlier detection report.
	Outliers string

	// Dirs maps each completed stage to its directory.
	Dirs map[Stage]string
}

// enabled reports whether the stage belongs to the run.
func (p Params) enabled(s Stage) bool {
	if p.StopAfter != 0 && s > p.StopAfter {
		return false
	}
	switch s {
	case StageSusceptibility:
		return !p.SkipSusceptibility
	case StageRegistration:
		return p.MorphologistDir != ""
	case StageQC:
		return p.QC != nil && p.MorphologistDir != ""
	}
	return true
}

// NewPlan returns the stage graph of a run with parameters p.
func NewPlan(p Params) (*plan.Plan, error) {
	pl := plan.New("preprocessing")
	add := func(s Stage, after ...Stage) error {
		if !p.enabled(s) {
			return nil
		}
		var parents []string
		for _, a := range after {
			if p.enabled(a) {
				parents = append(parents, a.Dir())
			}
		}
		return pl.AddStage(s.Dir(), s.Algorithm(), parents...)
	}

	corrected := StageSusceptibility
	if p.SkipSusceptibility {
		corrected = StageOutliers
	}
	steps := []struct {
		stage Stage
		after []Stage
	}{
		{StageImport, nil},
		{StageRoughMask, []Stage{StageImport}},
		{StageOutliers, []Stage{StageImport, StageRoughMask}},
		{StageSusceptibility, []Stage{StageImport, StageRoughMask, StageOutliers}},
		{StageEddyMotion, []Stage{StageImport, StageRoughMask, corrected}},
		{StageRegistration, []Stage{StageRoughMask, StageEddyMotion}},
		{StageQC, []Stage{StageImport, StageRoughMask, StageOutliers, StageSusceptibility, StageEddyMotion, StageRegistration}},
	}
	for _, step := range steps {
		if err := add(step.stage, step.after...); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// CompletePreprocessing runs the preprocessing stages in order under
// p.OutDir: import, rough mask, outliers, susceptibility, eddy current and
// motion correction with export to NIfTI, then the optional registration
// and quality check. Intermediate directories are deleted only when
// p.DeleteSteps is set and every stage succeeded.
func CompletePreprocessing(ctx context.Context, eng engine.Engine, conv convert.Converter, p Params) (*Result, error) {
	res := &Result{
		RunID: uuid.NewString(),
		Dirs:  make(map[Stage]string),
	}
	ctx = logger.WithStr(ctx, "run_id", res.RunID)
	ctx = logger.WithStr(ctx, "subject", p.SubjectID)
	log := logger.FromContext(ctx, "preproc")

	if p.StopAfter != 0 && p.StopAfter.Dir() == "" {
		return nil, errdefs.Validation("Invalid stop stage %d.", int(p.StopAfter))
	}
	if err := os.MkdirAll(p.OutDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating '%s'", p.OutDir)
	}

	dir := func(s Stage) string {
		return filepath.Join(p.OutDir, s.Dir())
	}
	run := func(s Stage, fn func() (string, error)) error {
		if !p.enabled(s) {
			p.Plan.Mark(s.Dir(), models.StageSkipped)
			return nil
		}
		log.Info().Str("stage", s.Dir()).Msg("starting stage")
		p.Plan.Mark(s.Dir(), models.StageRunning)
		out, err := fn()
		if err != nil {
			p.Plan.MarkWithMessage(s.Dir(), models.StageFailed, err.Error())
			return errors.WithMessagef(err, "stage %s", s.Dir())
		}
		p.Plan.Mark(s.Dir(), models.StageDone)
		res.Dirs[s] = out
		return nil
	}

	rawDir, maskDir, outliersDir := dir(StageImport), dir(StageRoughMask), dir(StageOutliers)
	susceptibilityDir, eddyDir := dir(StageSusceptibility), dir(StageEddyMotion)
	registrationDir := dir(StageRegistration)

	err := run(StageImport, func() (string, error) {
		return DataImportAndQSpaceSampling(ctx, eng, conv, QSpaceParams{
			OutDir:       rawDir,
			SubjectID:    p.SubjectID,
			Inputs:       p.Inputs,
			Manufacturer: p.Manufacturer,
			InvertX:      p.InvertX,
			InvertY:      p.InvertY,
			InvertZ:      p.InvertZ,
			MinBValue:    p.MinBValue,
		})
	})
	if err != nil {
		return nil, err
	}

	err = run(StageRoughMask, func() (string, error) {
		if err := requireStageDir(rawDir, "import"); err != nil {
			return "", err
		}
		return RoughMaskExtraction(ctx, eng, RoughMaskParams{
			OutDir:    maskDir,
			RawDWIDir: rawDir,
			SubjectID: p.SubjectID,
		})
	})
	if err != nil {
		return nil, err
	}

	err = run(StageOutliers, func() (string, error) {
		if err := requireStageDir(maskDir, "rough mask"); err != nil {
			return "", err
		}
		return OutlyingSliceDetection(ctx, eng, OutliersParams{
			OutDir:       outliersDir,
			RawDWIDir:    rawDir,
			RoughMaskDir: maskDir,
			SubjectID:    p.SubjectID,
		})
	})
	if err != nil {
		return nil, err
	}

	err = run(StageSusceptibility, func() (string, error) {
		if err := requireStageDir(outliersDir, "outliers"); err != nil {
			return "", err
		}
		return SusceptibilityCorrection(ctx, eng, SusceptibilityParams{
			OutDir:                     susceptibilityDir,
			RawDWIDir:                  rawDir,
			RoughMaskDir:               maskDir,
			OutliersDir:                outliersDir,
			SubjectID:                  p.SubjectID,
			DeltaTE:                    p.DeltaTE,
			PartialFourierFactor:       p.PartialFourierFactor,
			ParallelAccelerationFactor: p.ParallelAccelerationFactor,
			NegativeSign:               p.NegativeSign,
			EchoSpacing:                p.EchoSpacing,
			EPIFactor:                  p.EPIFactor,
			B0Field:                    p.B0Field,
			WaterFatShift:              p.WaterFatShift,
		})
	})
	if err != nil {
		return nil, err
	}

	correctedDir, correctedName := susceptibilityDir, "susceptibility"
	if p.SkipSusceptibility {
		correctedDir, correctedName = outliersDir, "outliers"
	}
	err = run(StageEddyMotion, func() (string, error) {
		if err := requireStageDir(correctedDir, correctedName); err != nil {
			return "", err
		}
		out, err := EddyAndMotionCorrection(ctx, eng, EddyMotionParams{
			OutDir:       eddyDir,
			RawDWIDir:    rawDir,
			RoughMaskDir: maskDir,
			CorrectedDir: correctedDir,
			SubjectID:    p.SubjectID,
		})
		if err != nil {
			return "", err
		}

		exported, err := ExportEddyMotionResultsToNifti(ctx, conv, out, p.OutDir, "dwi")
		if err != nil {
			return "", err
		}
		res.DWI, res.BVal, res.BVec = exported.DWI, exported.BVal, exported.BVec

		res.Outliers = filepath.Join(p.OutDir, "outliers.py")
		if err := fsutil.CopyFile(filepath.Join(outliersDir, "outliers.py"), res.Outliers); err != nil {
			return "", err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	err = run(StageRegistration, func() (string, error) {
		if err := requireStageDir(eddyDir, "eddy current and motion"); err != nil {
			return "", err
		}
		return DWIToAnatomy(ctx, eng, RegistrationParams{
			OutDir:          registrationDir,
			CorrectedDWIDir: eddyDir,
			RoughMaskDir:    maskDir,
			MorphologistDir: p.MorphologistDir,
			SubjectID:       p.SubjectID,
		})
	})
	if err != nil {
		return nil, err
	}

	err = run(StageQC, func() (string, error) {
		if err := requireStageDir(registrationDir, "registration"); err != nil {
			return "", err
		}
		qcSusceptibility := susceptibilityDir
		if p.SkipSusceptibility {
			qcSusceptibility = ""
		}
		return QCReporting(ctx, eng, QCParams{
			OutDir:            dir(StageQC),
			RawDWIDir:         rawDir,
			RegistrationDir:   registrationDir,
			RoughMaskDir:      maskDir,
			OutliersDir:       outliersDir,
			SusceptibilityDir: qcSusceptibility,
			EddyMotionDir:     eddyDir,
			SubjectID:         p.SubjectID,
			ProjectName:       p.QC.ProjectName,
			TimeStep:          p.QC.TimeStep,
		})
	})
	if err != nil {
		return nil, err
	}

	if p.DeleteSteps && res.DWI != "" {
		if err := removeIntermediateDirs(ctx, res.Dirs); err != nil {
			return nil, err
		}
		log.Info().Msg("intermediate directories removed")
	}

	log.Info().Int("stages", len(res.Dirs)).Msg("preprocessing done")
	return res, nil
}

// removeIntermediateDirs deletes the stage directories preceding the
// registration and drops them from dirs.
func removeIntermediateDirs(ctx context.Context, dirs map[Stage]string) error {
	var paths []string
	var removed []Stage
	for s := StageImport; s <= StageEddyMotion; s++ {
		if path, ok := dirs[s]; ok {
			paths = append(paths, path)
			removed = append(removed, s)
		}
	}
	if err := fsutil.RemoveDirs(ctx, paths...); err != nil {
		return err
	}
	for _, s := range removed {
		delete(dirs, s)
	}
	return nil
}
