package preproc

import (
	"context"
	"path/filepath"

	"goconnectomist/internal/fsutil"
	"goconnectomist/internal/logger"
	"goconnectomist/internal/models"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/gradient"
	"goconnectomist/pkg/paramfile"
)

// InputFiles are the raw acquisition files of a subject.
type InputFiles struct {
	DWI  string
	BVal string
	BVec string

	// B0Magnitude and B0Phase are the optional field maps. A magnitude map
	// holding two volumes without a phase map is split in two.
	B0Magnitude string
	B0Phase     string
}

// ImportedFiles are the engine formatted copies written by
// GatherAndFormatInputFiles.
type ImportedFiles struct {
	DWI         string
	BVal        string
	BVec        string
	B0Magnitude string
	B0Phase     string
}

// GatherAndFormatInputFiles checks the input files, then copies them to
// outdir converting the images to GIS.
func GatherAndFormatInputFiles(ctx context.Context, conv convert.Converter, outdir string, in InputFiles) (*ImportedFiles, error) {
	required := []string{in.DWI, in.BVal, in.BVec}
	for _, optional := range []string{in.B0Magnitude, in.B0Phase} {
		if optional != "" {
			required = append(required, optional)
		}
	}
	if err := fsutil.RequireFiles(required...); err != nil {
		return nil, err
	}

	var b0Volumes int
	if in.B0Magnitude != "" && in.B0Phase == "" {
		hdr, err := convert.ReadNiftiHeader(in.B0Magnitude)
		if err != nil {
			return nil, err
		}
		b0Volumes = hdr.VolumeCount()
	}

	out := &ImportedFiles{
		BVal: filepath.Join(outdir, "dwi.bval"),
		BVec: filepath.Join(outdir, "dwi.bvec"),
	}
	if err := fsutil.CopyFile(in.BVal, out.BVal); err != nil {
		return nil, err
	}
	if err := fsutil.CopyFile(in.BVec, out.BVec); err != nil {
		return nil, err
	}

	var err error
	if out.DWI, err = conv.NiftiToGis(ctx, in.DWI, filepath.Join(outdir, "dwi.ima")); err != nil {
		return nil, err
	}

	switch {
	case in.B0Magnitude == "":
	case in.B0Phase == "" && b0Volumes == 2:
		maps, err := conv.NiftiToGis(ctx, in.B0Magnitude, filepath.Join(outdir, "b0_maps.ima"))
		if err != nil {
			return nil, err
		}
		if out.B0Magnitude, err = conv.ExtractVolume(ctx, maps, filepath.Join(outdir, "b0_magnitude.ima"), 0); err != nil {
			return nil, err
		}
		if out.B0Phase, err = conv.ExtractVolume(ctx, maps, filepath.Join(outdir, "b0_phase.ima"), 1); err != nil {
			return nil, err
		}
	default:
		if out.B0Magnitude, err = conv.NiftiToGis(ctx, in.B0Magnitude, filepath.Join(outdir, "b0_magnitude.ima")); err != nil {
			return nil, err
		}
		if in.B0Phase != "" {
			if out.B0Phase, err = conv.NiftiToGis(ctx, in.B0Phase, filepath.Join(outdir, "b0_phase.ima")); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// QSpaceParams configures DataImportAndQSpaceSampling.
type QSpaceParams struct {
	OutDir    string
	SubjectID string
	Inputs    InputFiles

	// Manufacturer is one of models.Manufacturers().
	Manufacturer string

	// Invert flags flip the sign of a gradient axis.
	InvertX bool
	InvertY bool
	InvertZ bool

	// MinBValue rejects non-zero b-values below it. Zero means
	// gradient.DefaultMinBValue.
	MinBValue float64
}

// DataImportAndQSpaceSampling imports a single shell acquisition into the
// engine and samples its q-space. It returns the stage directory.
func DataImportAndQSpaceSampling(ctx context.Context, eng engine.Engine, conv convert.Converter, p QSpaceParams) (string, error) {
	log := logger.FromContext(ctx, "preproc").With().Str("stage", Steps[0]).Logger()

	if err := fsutil.RequireFiles(p.Inputs.DWI, p.Inputs.BVal, p.Inputs.BVec); err != nil {
		return "", err
	}
	manufacturer, err := models.ParseManufacturer(p.Manufacturer)
	if err != nil {
		return "", err
	}
	minB := p.MinBValue
	if minB == 0 {
		minB = gradient.DefaultMinBValue
	}
	table, err := gradient.Read(p.Inputs.BVal, p.Inputs.BVec, minB)
	if err != nil {
		return "", err
	}
	if table.ShellCount != 1 {
		return "", errdefs.Validation("Found %d shells in '%s', only single shell acquisitions are supported.",
			table.ShellCount, p.Inputs.BVal)
	}
	hdr, err := convert.ReadNiftiHeader(p.Inputs.DWI)
	if err != nil {
		return "", err
	}
	if hdr.VolumeCount() != table.Len() {
		return "", errdefs.Validation("'%s' holds %d volumes but the gradient table describes %d.",
			p.Inputs.DWI, hdr.VolumeCount(), table.Len())
	}

	files, err := GatherAndFormatInputFiles(ctx, conv, p.OutDir, p.Inputs)
	if err != nil {
		return "", err
	}
	log.Debug().
		Int("volumes", table.Len()).
		Int("no_diffusion", table.NoDiffusionCount).
		Str("manufacturer", manufacturer.String()).
		Msg("input files formatted")

	params := paramfile.Params{
		"fileNameDwi":         files.DWI,
		"sliceAxis":           2,
		"phaseAxis":           1,
		"manufacturer":        manufacturer.Code(),
		"flipAlongX":          0,
		"flipAlongY":          0,
		"flipAlongZ":          0,
		"numberOfDiscarded":   0,
		"numberOfT2":          table.NoDiffusionCount,
		"numberOfRepetitions": 1,
		"qSpaceSamplingType":  4,
		"qSpaceChoice5BValue": 1300,
		"invertXAxis":         paramfile.Bool(p.InvertX),
		"invertYAxis":         paramfile.Bool(p.InvertY),
		"invertZAxis":         paramfile.Bool(p.InvertZ),
		"diffusionTime":       1.0,
		"outputWorkDirectory": p.OutDir,
		"_subjectName":        p.SubjectID,

		"qSpaceChoice5OrientationFileNames":  files.BVec,
		"qSpaceChoice1MaximumBValue":         1000,
		"qSpaceChoice1NumberOfSteps":         11,
		"qSpaceChoice9OrientationFileNames":  "",
		"qSpaceChoice13OrientationFileNames": "",
	}
	for _, axes := range []string{"xx", "xy", "xz", "yx", "yy", "yz", "zx", "zy", "zz"} {
		value := 0.0
		if axes[0] == axes[1] {
			value = 1.0
		}
		params["qSpaceTransform_"+axes] = value
	}
	for _, choice := range []string{"2", "3", "4"} {
		params["qSpaceChoice"+choice+"BValue"] = 1000
	}
	for _, choice := range []string{"2", "3", "4", "6", "7", "8"} {
		params["qSpaceChoice"+choice+"NumberOfOrientations"] = 6
	}
	for _, choice := range []string{"6", "7", "8", "9", "10", "11", "12", "13"} {
		params["qSpaceChoice"+choice+"BValues"] = ""
	}
	for _, choice := range []string{"10", "11", "12"} {
		params["qSpaceChoice"+choice+"NumberOfOrientations"] = ""
	}

	outdir, err := eng.Run(ctx, AlgorithmImport, params, p.OutDir)
	if err != nil {
		return "", err
	}

	if table.NoDiffusionCount > 1 {
		merged := gradient.MergeNonDiffusion(table)
		if err := gradient.WriteBValues(files.BVal, merged.BValues); err != nil {
			return "", err
		}
		if err := gradient.WriteBVectors(files.BVec, merged.BVectors, 10); err != nil {
			return "", err
		}
		log.Info().Int("merged", table.NoDiffusionCount).Msg("non diffusion volumes merged in gradient files")
	}
	return outdir, nil
}
