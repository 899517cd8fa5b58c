// Package labeling wraps the Connectomist fast bundle labeling: fibers of
// one or more bundle maps are assigned to the bundles of a white matter
// atlas, then the labelled bundles are exported to the trackvis format.
package labeling

import (
	"context"
	"sort"
	"strings"

	"goconnectomist/internal/fsutil"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/paramfile"
)

// Algorithm is the engine algorithm name.
const Algorithm = "DWI-Fast-Bundle-Labelling"

// Atlas names.
const (
	AtlasGuevaraLong  = "Guevara long bundle"
	AtlasGuevaraShort = "Guevara short bundle"
	AtlasCustom       = "custom"
)

// DefaultFiberCount is the number of fibers labelled at once.
const DefaultFiberCount = 50000

var atlasCodes = paramfile.Codes{
	AtlasGuevaraLong:  0,
	AtlasGuevaraShort: 1,
	AtlasCustom:       2,
}

var bundleNames = map[string]struct{}{}

func init() {
	for _, side := range []string{"Left", "Right"} {
		for _, bundle := range []string{
			"Arcuate_Anterior", "Arcuate", "Arcuate_Posterior",
			"Cingulum_Long", "Cingulum_Short", "Cingulum_Temporal",
			"CorticoSpinalTract", "Fornix",
			"InferiorFrontoOccipital", "InferiorLongitudinal",
			"ThalamicRadiations_Anterior", "ThalamicRadiations_Inferior",
			"ThalamicRadiations_Motor", "ThalamicRadiations_Parietal",
			"ThalamicRadiations_Posterior", "Uncinate",
		} {
			bundleNames[bundle+"_"+side] = struct{}{}
		}
	}
	for _, part := range []string{"Body", "Genu", "Rostrum", "Splenium"} {
		bundleNames["CorpusCallosum_"+part] = struct{}{}
	}
}

// BundleNames returns the bundle names known to the atlases, sorted.
func BundleNames() []string {
	names := make([]string, 0, len(bundleNames))
	for name := range bundleNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Atlases returns the accepted atlas names, sorted.
func Atlases() []string {
	return atlasCodes.Names()
}

// Options are the labeling settings independent of the subject.
type Options struct {
	Atlas string

	// CustomAtlasDir is only valid with the custom atlas.
	CustomAtlasDir string

	// BundleNames restricts the labelling to a subset of BundleNames. An
	// empty selection labels every bundle of the atlas.
	BundleNames []string

	FiberCount         int
	DisableResampling  bool
	KeepTemporaryFiles bool
}

// DefaultOptions returns the Guevara long bundle atlas settings.
func DefaultOptions() Options {
	return Options{
		Atlas:      AtlasGuevaraLong,
		FiberCount: DefaultFiberCount,
	}
}

// Validate checks the closed-set options without touching the bundle maps.
func (o Options) Validate() error {
	if _, err := atlasCodes.Lookup("atlas name", o.Atlas); err != nil {
		return err
	}
	if o.CustomAtlasDir != "" {
		if o.Atlas != AtlasCustom {
			return errdefs.Validation("'atlas' argument has to be set to '%s' when setting a custom atlas directory.", AtlasCustom)
		}
		if !fsutil.IsDir(o.CustomAtlasDir) {
			return errdefs.Validation("'%s' is not a valid atlas directory.", o.CustomAtlasDir)
		}
	}
	if o.FiberCount < 0 {
		return errdefs.Validation("'fiberCount' must be positive, got %d.", o.FiberCount)
	}
	for _, name := range o.BundleNames {
		if _, ok := bundleNames[name]; !ok {
			return errdefs.Validation("'%s' bundle name not supported, should be in %v.", name, BundleNames())
		}
	}
	return nil
}

// Params configures FastBundleLabeling.
type Params struct {
	OutDir     string
	BundleMaps []string

	// BundleMapToT1 and T1ToTalairach chain the bundle maps to the atlas
	// frame.
	BundleMapToT1 string
	T1ToTalairach string

	SubjectID string
	Options
}

// FastBundleLabeling labels the fibers of the bundle maps with the atlas
// bundles.
func FastBundleLabeling(ctx context.Context, eng engine.Engine, p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	atlas, _ := atlasCodes.Lookup("atlas name", p.Atlas)
	fiberCount := p.FiberCount
	if fiberCount == 0 {
		fiberCount = DefaultFiberCount
	}

	required := append(append([]string(nil), p.BundleMaps...), p.BundleMapToT1, p.T1ToTalairach)
	if err := fsutil.RequireFiles(required...); err != nil {
		return "", err
	}

	params := paramfile.Params{
		"inputBundleMapFileNames":                    strings.Join(p.BundleMaps, " "),
		"fileNameBundleMapToTalairachTransformation": p.BundleMapToT1,
		"fileNameT1ToTalairachTransformation":        p.T1ToTalairach,
		"atlasName":                                  atlas,
		"customAtlasDirectory":                       p.CustomAtlasDir,
		"bundleNameSelection":                        strings.Join(p.BundleNames, " "),
		"fiberCount":                                 fiberCount,
		"doResampling":                               paramfile.Bool(!p.DisableResampling),
		"removeTemporaryFiles":                       !p.KeepTemporaryFiles,
		"outputWorkDirectory":                        p.OutDir,
		"_subjectName":                               p.SubjectID,
	}
	return eng.Run(ctx, Algorithm, params, p.OutDir)
}
