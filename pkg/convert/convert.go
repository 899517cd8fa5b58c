// Package convert translates between the engine's GIS volumes, NIfTI
// images and trackvis bundles using the PTK command line tools.
package convert

import (
	"context"
	"os"
	"strconv"
	"strings"

	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
)

// Converter is the set of format operations the pipeline relies on.
type Converter interface {
	// NiftiToGis converts a NIfTI image to GIS and returns the .ima path.
	NiftiToGis(ctx context.Context, nifti, gis string) (string, error)

	// GisToNifti converts a GIS volume to NIfTI. A .gz destination is
	// gzip-compressed after conversion.
	GisToNifti(ctx context.Context, gis, nifti string) (string, error)

	// ConcatenateVolumes concatenates GIS volumes along time.
	ConcatenateVolumes(ctx context.Context, inputs []string, output string) (string, error)

	// SplitT2AndDiffusion writes the first volume and the remaining
	// volumes of a GIS series to separate files.
	SplitT2AndDiffusion(ctx context.Context, input, t2, dw string) (string, string, error)

	// ExtractVolume writes the volume at index of a GIS series.
	ExtractVolume(ctx context.Context, input, output string, index int) (string, error)

	// BundleToTrk converts an engine bundle map to trackvis format.
	BundleToTrk(ctx context.Context, bundle, trk string) (string, error)
}

// PTK implements Converter with the PTK tools.
type PTK struct {
	tools *engine.Tools
}

// NewPTK returns a PTK converter running tools.
func NewPTK(tools *engine.Tools) *PTK {
	return &PTK{tools: tools}
}

func requireFiles(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return errdefs.BadFile(p)
		}
	}
	return nil
}

func withSuffix(path, suffix string) string {
	if strings.HasSuffix(path, suffix) {
		return path
	}
	return path + suffix
}

// NiftiToGis implements Converter.
func (p *PTK) NiftiToGis(ctx context.Context, nifti, gis string) (string, error) {
	if err := requireFiles(nifti); err != nil {
		return "", err
	}
	gis = withSuffix(gis, ".ima")
	if err := p.tools.Run(ctx, "PtkNifti2GisConverter", "-i", nifti, "-o", gis); err != nil {
		return "", err
	}
	return gis, nil
}

// GisToNifti implements Converter.
func (p *PTK) GisToNifti(ctx context.Context, gis, nifti string) (string, error) {
	if err := requireFiles(gis); err != nil {
		return "", err
	}
	compress := strings.HasSuffix(nifti, ".gz")
	nifti = withSuffix(strings.TrimSuffix(nifti, ".gz"), ".nii")
	if err := p.tools.Run(ctx, "PtkGis2NiftiConverter", "-i", gis, "-o", nifti); err != nil {
		return "", err
	}
	if compress {
		return GzCompress(ctx, nifti, true)
	}
	return nifti, nil
}

// ConcatenateVolumes implements Converter.
func (p *PTK) ConcatenateVolumes(ctx context.Context, inputs []string, output string) (string, error) {
	if err := requireFiles(inputs...); err != nil {
		return "", err
	}
	output = withSuffix(output, ".ima")
	args := append([]string{"-i"}, inputs...)
	args = append(args, "-o", output, "-t", "t")
	if err := p.tools.Run(ctx, "PtkCat", args...); err != nil {
		return "", err
	}
	return output, nil
}

// SplitT2AndDiffusion implements Converter. The input must be a .ima file.
func (p *PTK) SplitT2AndDiffusion(ctx context.Context, input, t2, dw string) (string, string, error) {
	if err := requireFiles(input); err != nil {
		return "", "", err
	}
	if !strings.HasSuffix(input, ".ima") {
		return "", "", errdefs.BadFile(input)
	}
	t2 = withSuffix(t2, ".ima")
	dw = withSuffix(dw, ".ima")
	if err := p.tools.Run(ctx, "PtkSubVolume", "-i", input, "-o", t2, "-tIndices", "0"); err != nil {
		return "", "", err
	}
	if err := p.tools.Run(ctx, "PtkSubVolume", "-i", input, "-o", dw, "-t", "1"); err != nil {
		return "", "", err
	}
	return t2, dw, nil
}

// ExtractVolume implements Converter.
func (p *PTK) ExtractVolume(ctx context.Context, input, output string, index int) (string, error) {
	if err := requireFiles(input); err != nil {
		return "", err
	}
	output = withSuffix(output, ".ima")
	if err := p.tools.Run(ctx, "PtkSubVolume", "-i", input, "-o", output, "-tIndices", strconv.Itoa(index)); err != nil {
		return "", err
	}
	return output, nil
}

// BundleToTrk implements Converter.
func (p *PTK) BundleToTrk(ctx context.Context, bundle, trk string) (string, error) {
	if err := requireFiles(bundle); err != nil {
		return "", err
	}
	trk = withSuffix(trk, ".trk")
	if err := p.tools.Run(ctx, "PtkDwiBundleOperator",
		"-i", bundle, "-o", trk, "-op", "fusion", "-of", "trkbundlemap"); err != nil {
		return "", err
	}
	return trk, nil
}
