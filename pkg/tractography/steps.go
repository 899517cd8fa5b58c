// Package tractography wraps the Connectomist tractography stages that
// follow the preprocessing: local diffusion modeling, tractography mask
// computation, fiber tracking and the fast bundle labeling of the tracks.
package tractography

import (
	"fmt"

	"goconnectomist/pkg/labeling"
	"goconnectomist/pkg/paramfile"
)

// Steps are the stage directory names. The modeling and tracking names
// are formatted with the model and the tracking type.
var Steps = []string{
	"07-Local_modeling_%s",
	"08-Tractography_mask",
	"09-Tractography_%s",
	labeling.Step,
}

// ModelStep returns the local modeling directory name of model.
func ModelStep(model string) string {
	return fmt.Sprintf(Steps[0], model)
}

// MaskStep returns the tractography mask directory name.
func MaskStep() string {
	return Steps[1]
}

// TrackingStep returns the tractography directory name of a tracking type.
func TrackingStep(trackingType string) string {
	return fmt.Sprintf(Steps[2], trackingType)
}

// Engine algorithm names.
const (
	AlgorithmModel    = "DWI-Local-Modeling"
	AlgorithmMask     = "DWI-Tractography-Mask"
	AlgorithmTracking = "DWI-Tractography"
)

// Local models.
const (
	ModelDOT    = "dot"
	ModelSD     = "sd"
	ModelSDT    = "sdt"
	ModelAQBI   = "aqbi"
	ModelSAAQBI = "sa-aqbi"
	ModelDTI    = "dti"
)

var (
	modelCodes = paramfile.Codes{
		ModelDOT:    0,
		ModelSD:     3,
		ModelSDT:    4,
		ModelAQBI:   5,
		ModelSAAQBI: 6,
		ModelDTI:    7,
	}
	estimatorCodes = paramfile.Codes{
		"linear":   0,
		"positive": 1,
	}
	kernelCodes = paramfile.Codes{
		"symmetric_tensor": 0,
		"normal":           1,
	}
	bundleMapCodes = paramfile.Codes{
		"aimsbundlemap": 0,
		"bundlemap":     1,
		"vtkbundlemap":  2,
		"trkbundlemap":  3,
	}
	trackingCodes = paramfile.Codes{
		"streamline_deterministic":            0,
		"streamline_regularize_deterministic": 1,
		"streamline_probabilistic":            2,
	}
)

// Models returns the supported local models, sorted.
func Models() []string { return modelCodes.Names() }

// Estimators returns the supported DTI estimators, sorted.
func Estimators() []string { return estimatorCodes.Names() }

// Kernels returns the supported spherical deconvolution kernels, sorted.
func Kernels() []string { return kernelCodes.Names() }

// BundleMapFormats returns the supported bundle map formats, sorted.
func BundleMapFormats() []string { return bundleMapCodes.Names() }

// TrackingTypes returns the supported tracking algorithms, sorted.
func TrackingTypes() []string { return trackingCodes.Names() }
