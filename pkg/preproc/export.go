package preproc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/gradient"
	"goconnectomist/pkg/paramfile"
)

// ExportedDWI are the NIfTI diffusion image and its gradient files.
type ExportedDWI struct {
	DWI  string
	BVal string
	BVec string
}

// ExportEddyMotionResultsToNifti converts the corrected volumes of an eddy
// current and motion directory to <outdir>/<filename>.nii.gz, with the
// gradient files rebuilt from the corrected orientations. The merged non
// diffusion volume comes first with b=0 and a zero vector. An empty outdir
// means eddyMotionDir and an empty filename means "dwi".
func ExportEddyMotionResultsToNifti(ctx context.Context, conv convert.Converter, eddyMotionDir, outdir, filename string) (*ExportedDWI, error) {
	if outdir == "" {
		outdir = eddyMotionDir
	}
	if filename == "" {
		filename = "dwi"
	}
	t2 := filepath.Join(eddyMotionDir, "t2_wo_eddy_current_and_motion.ima")
	dw := filepath.Join(eddyMotionDir, "dw_wo_eddy_current_and_motion.ima")
	if err := fsutil.RequireFiles(t2, dw); err != nil {
		return nil, err
	}
	minf, err := paramfile.ReadMinf(dw + ".minf")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating '%s'", outdir)
	}

	merged, err := conv.ConcatenateVolumes(ctx, []string{t2, dw},
		filepath.Join(eddyMotionDir, "t2_dw_wo_eddy_current_and_motion.ima"))
	if err != nil {
		return nil, err
	}
	out := &ExportedDWI{
		BVal: filepath.Join(outdir, filename+".bval"),
		BVec: filepath.Join(outdir, filename+".bvec"),
	}
	if out.DWI, err = conv.GisToNifti(ctx, merged, filepath.Join(outdir, filename+".nii.gz")); err != nil {
		return nil, err
	}

	bvals := append([]float64{0}, minf.BValues...)
	if err := gradient.WriteBValues(out.BVal, bvals); err != nil {
		return nil, err
	}
	bvecs := append([][3]float64{{0, 0, 0}}, gradient.Normalize(minf.Orientations)...)
	if err := gradient.WriteBVectors(out.BVec, bvecs, 10); err != nil {
		return nil, err
	}
	return out, nil
}
