package labeling

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"goconnectomist/internal/fsutil"
	"goconnectomist/internal/logger"
	"goconnectomist/internal/models"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/plan"
	"goconnectomist/pkg/preproc"
)

// Step is the labeling directory name.
const Step = "10-Fast_bundle_labeling"

// ExportStep names the trackvis export in stage plans.
const ExportStep = "export_bundles"

// BundleMapToT1 returns the DW to T1 transformation written by the
// preprocessing registration stage.
func BundleMapToT1(registrationDir string) string {
	return filepath.Join(registrationDir, "dw_to_t1.trm")
}

// T1ToTalairach returns the Morphologist T1 to Talairach transformation
// of subject.
func T1ToTalairach(morphologistDir, subject string) string {
	return filepath.Join(preproc.MorphologistAcquisitionDir(morphologistDir, subject), "registration",
		"RawT1-"+subject+"_default_acquisition_TO_Talairach-ACPC.trm")
}

// FindBundleMaps returns the bundle map headers written by a tractography
// run in dir.
func FindBundleMaps(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.bundlesdata"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errdefs.Pipeline("In '%s' can't detect any Connectomist bundle map.", dir)
	}
	maps := make([]string, len(matches))
	for i, m := range matches {
		maps[i] = strings.TrimSuffix(m, "data")
	}
	return maps, nil
}

// RunParams configures Labeling.
type RunParams struct {
	OutDir          string
	TractographyDir string
	RegistrationDir string
	MorphologistDir string
	SubjectID       string
	Options

	// Plan receives the stage statuses when set.
	Plan *plan.Plan
}

// Result lists the labeling outputs.
type Result struct {
	RunID   string
	Dir     string
	Bundles []string
}

// NewPlan returns the two stage plan run by Labeling.
func NewPlan() (*plan.Plan, error) {
	pl := plan.New("labeling")
	if err := pl.AddStage(Step, Algorithm); err != nil {
		return nil, err
	}
	if err := pl.AddStage(ExportStep, "PtkDwiBundleOperator", Step); err != nil {
		return nil, err
	}
	return pl, nil
}

// Labeling labels the bundle maps of a tractography directory in
// <OutDir>/10-Fast_bundle_labeling and exports the labelled bundles under
// OutDir.
func Labeling(ctx context.Context, eng engine.Engine, conv convert.Converter, p RunParams) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Dir: filepath.Join(p.OutDir, Step)}
	ctx = logger.WithStr(ctx, "run_id", res.RunID)
	ctx = logger.WithStr(ctx, "subject", p.SubjectID)
	log := logger.FromContext(ctx, "labeling")

	if !fsutil.IsDir(p.TractographyDir) {
		return nil, errdefs.Pipeline("In '%s' can't detect Connectomist tractography folder '%s'.",
			filepath.Dir(p.TractographyDir), filepath.Base(p.TractographyDir))
	}
	maps, err := FindBundleMaps(p.TractographyDir)
	if err != nil {
		return nil, err
	}

	log.Info().Int("bundle_maps", len(maps)).Msg("starting labeling")
	p.Plan.Mark(Step, models.StageRunning)
	_, err = FastBundleLabeling(ctx, eng, Params{
		OutDir:        res.Dir,
		BundleMaps:    maps,
		BundleMapToT1: BundleMapToT1(p.RegistrationDir),
		T1ToTalairach: T1ToTalairach(p.MorphologistDir, p.SubjectID),
		SubjectID:     p.SubjectID,
		Options:       p.Options,
	})
	if err != nil {
		p.Plan.MarkWithMessage(Step, models.StageFailed, err.Error())
		return nil, err
	}
	p.Plan.Mark(Step, models.StageDone)

	p.Plan.Mark(ExportStep, models.StageRunning)
	res.Bundles, err = ExportBundlesToTrk(ctx, conv, res.Dir, p.OutDir)
	if err != nil {
		p.Plan.MarkWithMessage(ExportStep, models.StageFailed, err.Error())
		return nil, err
	}
	p.Plan.Mark(ExportStep, models.StageDone)
	return res, nil
}
