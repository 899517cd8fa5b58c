package tractography

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
	"goconnectomist/pkg/labeling"
	"goconnectomist/pkg/plan"
	"goconnectomist/pkg/preproc"
)

// Export stage names of the plan.
const (
	ExportScalarsStep = "export_scalars"
	ExportMaskStep    = "export_mask"
)

// Params configures CompleteTractography.
type Params struct {
	OutDir    string
	SubjectID string

	// PreprocDir holds the preprocessing stage directories. Only the
	// registration directory is read.
	PreprocDir      string
	MorphologistDir string

	Model    ModelOptions
	Mask     MaskOptions
	Tracking TrackingOptions
	Labeling labeling.Options

	// ModelOnly stops after the local model and its scalar maps.
	ModelOnly bool

	// DeleteSteps removes the stage directories once the exports are
	// written.
	DeleteSteps bool

	Plan *plan.Plan
}

// DefaultParams returns the default model, mask, tracking and labeling
// options.
func DefaultParams() Params {
	return Params{
		Model:    DefaultModelOptions(),
		Mask:     MaskOptions{AddCommissures: true},
		Tracking: DefaultTrackingOptions(),
		Labeling: labeling.DefaultOptions(),
	}
}

// Validate checks every closed-set option used by the run.
func (p Params) Validate() error {
	if err := p.Model.Validate(); err != nil {
		return err
	}
	if p.ModelOnly {
		return nil
	}
	if err := p.Tracking.Validate(); err != nil {
		return err
	}
	return p.Labeling.Validate()
}

// Result lists the exported files and the stage directories still on
// disk.
type Result struct {
	RunID   string
	GFA     string
	MD      string
	Mask    string
	Bundles []string
	Dirs    map[string]string
}

// NewPlan returns the stage plan of a CompleteTractography run with p.
func NewPlan(p Params) (*plan.Plan, error) {
	pl := plan.New("tractography")
	model := ModelStep(p.Model.Model)
	type stage struct {
		name, algorithm string
		after           []string
	}
	stages := []stage{
		{model, AlgorithmModel, nil},
		{ExportScalarsStep, "PtkGis2NiftiConverter", []string{model}},
	}
	if !p.ModelOnly {
		tracking := TrackingStep(p.Tracking.TrackingType)
		stages = append(stages, []stage{
			{MaskStep(), AlgorithmMask, nil},
			{tracking, AlgorithmTracking, []string{model, MaskStep()}},
			{labeling.Step, labeling.Algorithm, []string{tracking}},
			{ExportMaskStep, "PtkGis2NiftiConverter", []string{MaskStep()}},
			{labeling.ExportStep, "PtkDwiBundleOperator", []string{labeling.Step}},
		}...)
	}
	for _, s := range stages {
		if err := pl.AddStage(s.name, s.algorithm, s.after...); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// CompleteTractography runs the local modeling, the tractography mask,
// the fiber tracking and the bundle labeling under p.OutDir, then exports
// the scalar maps, the mask and the labelled bundles to p.OutDir.
func CompleteTractography(ctx context.Context, eng engine.Engine, conv convert.Converter, p Params) (*Result, error) {
	res := &Result{
		RunID: uuid.NewString(),
		Dirs:  make(map[string]string),
	}
	ctx = logger.WithStr(ctx, "run_id", res.RunID)
	ctx = logger.WithStr(ctx, "subject", p.SubjectID)
	log := logger.FromContext(ctx, "tractography")

	registrationDir := filepath.Join(p.PreprocDir, preproc.Steps[preproc.StageRegistration-1])
	if !fsutil.IsDir(registrationDir) {
		return nil, errdefs.Pipeline("In '%s' can't detect Connectomist registration folder '%s'.",
			p.PreprocDir, filepath.Base(registrationDir))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.OutDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating '%s'", p.OutDir)
	}

	run := func(stage string, keep bool, fn func() (string, error)) error {
		log.Info().Str("stage", stage).Msg("starting stage")
		p.Plan.Mark(stage, models.StageRunning)
		out, err := fn()
		if err != nil {
			p.Plan.MarkWithMessage(stage, models.StageFailed, err.Error())
			return errors.WithMessagef(err, "stage %s", stage)
		}
		p.Plan.Mark(stage, models.StageDone)
		if keep {
			res.Dirs[stage] = out
		}
		return nil
	}

	modelStep := ModelStep(p.Model.Model)
	modelDir := filepath.Join(p.OutDir, modelStep)
	err := run(modelStep, true, func() (string, error) {
		return DWILocalModeling(ctx, eng, ModelParams{
			OutDir:           modelDir,
			RegisteredDWIDir: registrationDir,
			SubjectID:        p.SubjectID,
			ModelOptions:     p.Model,
		})
	})
	if err != nil {
		return nil, err
	}
	err = run(ExportScalarsStep, false, func() (string, error) {
		scalars, err := ExportScalarsToNifti(ctx, conv, modelDir, p.Model.Model, p.OutDir)
		if err != nil {
			return "", err
		}
		res.GFA, res.MD = scalars.GFA, scalars.MD
		return p.OutDir, nil
	})
	if err != nil {
		return nil, err
	}
	if p.ModelOnly {
		if err := cleanup(ctx, p, res); err != nil {
			return nil, err
		}
		return res, nil
	}

	maskDir := filepath.Join(p.OutDir, MaskStep())
	err = run(MaskStep(), true, func() (string, error) {
		return TractographyMask(ctx, eng, MaskParams{
			OutDir:          maskDir,
			SubjectID:       p.SubjectID,
			MorphologistDir: p.MorphologistDir,
			MaskOptions:     p.Mask,
		})
	})
	if err != nil {
		return nil, err
	}

	trackingStep := TrackingStep(p.Tracking.TrackingType)
	trackingDir := filepath.Join(p.OutDir, trackingStep)
	err = run(trackingStep, true, func() (string, error) {
		return Tractography(ctx, eng, TrackingParams{
			OutDir:           trackingDir,
			SubjectID:        p.SubjectID,
			MaskDir:          maskDir,
			Model:            p.Model.Model,
			ModelDir:         modelDir,
			RegisteredDWIDir: registrationDir,
			TrackingOptions:  p.Tracking,
		})
	})
	if err != nil {
		return nil, err
	}

	labelingDir := filepath.Join(p.OutDir, labeling.Step)
	err = run(labeling.Step, true, func() (string, error) {
		maps, err := labeling.FindBundleMaps(trackingDir)
		if err != nil {
			return "", err
		}
		return labeling.FastBundleLabeling(ctx, eng, labeling.Params{
			OutDir:        labelingDir,
			BundleMaps:    maps,
			BundleMapToT1: labeling.BundleMapToT1(registrationDir),
			T1ToTalairach: labeling.T1ToTalairach(p.MorphologistDir, p.SubjectID),
			SubjectID:     p.SubjectID,
			Options:       p.Labeling,
		})
	})
	if err != nil {
		return nil, err
	}

	err = run(ExportMaskStep, false, func() (string, error) {
		mask, err := ExportMaskToNifti(ctx, conv, maskDir, p.OutDir, "mask")
		res.Mask = mask
		return p.OutDir, err
	})
	if err != nil {
		return nil, err
	}
	err = run(labeling.ExportStep, false, func() (string, error) {
		bundles, err := labeling.ExportBundlesToTrk(ctx, conv, labelingDir, p.OutDir)
		res.Bundles = bundles
		return p.OutDir, err
	})
	if err != nil {
		return nil, err
	}

	if err := cleanup(ctx, p, res); err != nil {
		return nil, err
	}
	return res, nil
}

// cleanup removes the stage directories when p.DeleteSteps is set.
func cleanup(ctx context.Context, p Params, res *Result) error {
	if !p.DeleteSteps {
		return nil
	}
	dirs := make([]string, 0, len(res.Dirs))
	for _, dir := range res.Dirs {
		dirs = append(dirs, dir)
	}
	if err := fsutil.RemoveDirs(ctx, dirs...); err != nil {
		return err
	}
	log := logger.FromContext(ctx, "tractography")
	log.Info().Int("removed", len(dirs)).Msg("stage directories removed")
	res.Dirs = make(map[string]string)
	return nil
}
