package labeling

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"goconnectomist/internal/logger"
	"goconnectomist/pkg/convert"
)

// ReferentialDir is the labeling output subdirectory holding one directory
// per referential, each with the labelled bundles.
const ReferentialDir = "bundleMapsReferential"

// ExportBundlesToTrk converts every labelled bundle of labelingDir to
// <outdir>/bundles/<referential>/<bundle>.trk and returns the written
// paths.
func ExportBundlesToTrk(ctx context.Context, conv convert.Converter, labelingDir, outdir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(labelingDir, ReferentialDir, "*", "*.bundlesdata"))
	if err != nil {
		return nil, errors.Wrap(err, "listing labelled bundles")
	}

	log := logger.FromContext(ctx, "labeling")
	var trks []string
	for _, data := range matches {
		referential := filepath.Base(filepath.Dir(data))
		name := strings.TrimSuffix(filepath.Base(data), ".bundlesdata")
		dir := filepath.Join(outdir, "bundles", referential)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating '%s'", dir)
		}
		trk, err := conv.BundleToTrk(ctx, strings.TrimSuffix(data, "data"), filepath.Join(dir, name+".trk"))
		if err != nil {
			return nil, err
		}
		trks = append(trks, trk)
	}
	log.Info().Int("bundles", len(trks)).Str("outdir", outdir).Msg("bundles exported")
	return trks, nil
}
