package preproc

import (
	"context"
	"strconv"
	"strings"

	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/paramfile"
)

// DefaultOutlierFactor is the deviation factor above which a slice is an
// outlier.
const DefaultOutlierFactor = 3.0

// OutliersParams configures OutlyingSliceDetection.
type OutliersParams struct {
	OutDir       string
	RawDWIDir    string
	RoughMaskDir string
	SubjectID    string

	// OutlierFactor defaults to DefaultOutlierFactor when zero.
	OutlierFactor float64

	// DiscardedOrientations are orientation indices excluded up front.
	DiscardedOrientations []int
}

// OutlyingSliceDetection detects the slices corrupted by signal dropouts.
// The engine writes the outliers.py report in the stage directory.
func OutlyingSliceDetection(ctx context.Context, eng engine.Engine, p OutliersParams) (string, error) {
	factor := p.OutlierFactor
	if factor == 0 {
		factor = DefaultOutlierFactor
	}
	discarded := make([]string, len(p.DiscardedOrientations))
	for i, index := range p.DiscardedOrientations {
		discarded[i] = strconv.Itoa(index)
	}

	params := paramfile.Params{
		"rawDwiDirectory":          p.RawDWIDir,
		"roughMaskDirectory":       p.RoughMaskDir,
		"outputWorkDirectory":      p.OutDir,
		"discardedOrientationList": strings.Join(discarded, " "),
		"outlierFactor":            factor,
		"_subjectName":             p.SubjectID,
	}
	return eng.Run(ctx, AlgorithmOutliers, params, p.OutDir)
}
