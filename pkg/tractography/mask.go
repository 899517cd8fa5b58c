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
	"goconnectomist/pkg/preproc"
)

// MaskFile is the tractography mask written by TractographyMask.
const MaskFile = "tractography_mask.ima"

// MaskOptions selects the structures added to the white matter mask.
type MaskOptions struct {
	AddCerebellum  bool
	AddCommissures bool
}

// MaskParams configures TractographyMask.
type MaskParams struct {
	OutDir          string
	SubjectID       string
	MorphologistDir string
	MaskOptions
}

// TractographyMask computes the mask restricting the tracking from the
// Morphologist segmentation of the subject.
func TractographyMask(ctx context.Context, eng engine.Engine, p MaskParams) (string, error) {
	acquisition := preproc.MorphologistAcquisitionDir(p.MorphologistDir, p.SubjectID)
	analysis := filepath.Join(acquisition, "default_analysis")
	apc := filepath.Join(acquisition, p.SubjectID+".APC")
	histogram := filepath.Join(analysis, "nobias_"+p.SubjectID+".han")
	t1 := filepath.Join(analysis, "nobias_"+p.SubjectID+".nii.gz")
	voronoi := filepath.Join(analysis, "segmentation", "voronoi_"+p.SubjectID+".nii.gz")
	if err := fsutil.RequireFiles(apc, histogram, t1, voronoi); err != nil {
		return "", err
	}

	params := paramfile.Params{
		"_subjectName":                  p.SubjectID,
		"addCerebellum":                 paramfile.Bool(p.AddCerebellum),
		"addCommissures":                paramfile.Bool(p.AddCommissures),
		"addROIMask":                    0,
		"fileNameCommissureCoordinates": apc,
		"fileNameHistogramAnalysis":     histogram,
		"fileNameROIMaskToAdd":          "",
		"fileNameROIMaskToRemove":       "",
		"fileNameUnbiasedT1":            t1,
		"fileNameVoronoiMask":           voronoi,
		"outputWorkDirectory":           p.OutDir,
		"removeROIMask":                 0,
		"removeTemporaryFiles":          2,
	}
	return eng.Run(ctx, AlgorithmMask, params, p.OutDir)
}

// ExportMaskToNifti converts the tractography mask of maskDir to
// <outdir>/<filename>.nii.gz. An empty outdir means maskDir and an empty
// filename means "mask".
func ExportMaskToNifti(ctx context.Context, conv convert.Converter, maskDir, outdir, filename string) (string, error) {
	if outdir == "" {
		outdir = maskDir
	}
	if filename == "" {
		filename = "mask"
	}
	mask := filepath.Join(maskDir, MaskFile)
	if err := fsutil.RequireFiles(mask); err != nil {
		return "", err
	}
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating '%s'", outdir)
	}
	return conv.GisToNifti(ctx, mask, filepath.Join(outdir, filename+".nii.gz"))
}
