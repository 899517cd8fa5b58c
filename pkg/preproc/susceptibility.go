package preproc

import (
	"context"
	"path/filepath"
	"strings"

	"goconnectomist/internal/fsutil"
	"goconnectomist/internal/logger"
	"goconnectomist/internal/models"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/paramfile"
)

// Philips field map defaults.
const (
	DefaultB0Field       = 3.0
	DefaultWaterFatShift = 4.68
)

// SusceptibilityParams configures SusceptibilityCorrection. Nil pointers
// are unset parameters; the ones the scanner vendor requires are reported
// together in a missing parameters error.
type SusceptibilityParams struct {
	OutDir       string
	RawDWIDir    string
	RoughMaskDir string
	OutliersDir  string
	SubjectID    string

	DeltaTE                    *float64
	PartialFourierFactor       *float64
	ParallelAccelerationFactor *int
	NegativeSign               bool

	// EchoSpacing is required by every vendor but Philips.
	EchoSpacing *float64

	// Philips only.
	EPIFactor     *int
	B0Field       *float64
	WaterFatShift *float64
}

// DefaultSusceptibilityParams returns parameters with the Philips field
// map defaults set.
func DefaultSusceptibilityParams() SusceptibilityParams {
	return SusceptibilityParams{
		B0Field:       Float(DefaultB0Field),
		WaterFatShift: Float(DefaultWaterFatShift),
	}
}

func vendorDefaults(vendor string) paramfile.Params {
	sign := 0
	if vendor == "siemens" {
		sign = 2
	}
	params := paramfile.Params{
		vendor + "DeltaTE":                    2.46,
		vendor + "EchoSpacing":                0.75,
		vendor + "PhaseNegativeSign":          sign,
		vendor + "PartialFourierFactor":       1.0,
		vendor + "ParallelAccelerationFactor": 1,
	}
	switch vendor {
	case "bruker", "philips":
		params[vendor+"FileNameFirstEchoB0Magnitude"] = ""
		params[vendor+"FileNameB0PhaseDifference"] = ""
	case "ge":
		params[vendor+"FileNameDoubleEchoB0MagnitudePhaseRealImaginary"] = ""
	case "siemens":
		params[vendor+"FileNameDoubleEchoB0Magnitude"] = ""
		params[vendor+"FileNameB0PhaseDifference"] = ""
	}
	if vendor == "philips" {
		params["philipsEPIFactor"] = 128
		params["philipsStaticB0Field"] = 3.0
		params["philipsWaterFatShiftPerPixel"] = 0.0
	}
	return params
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// requiredFieldMapParams returns the vendor specific parameters that must
// be set, nil values marking the unset ones.
func requiredFieldMapParams(m models.Manufacturer, p SusceptibilityParams, magnitude, phase string) map[string]interface{} {
	vendor := strings.ToLower(m.String())
	sign := 0
	if p.NegativeSign {
		sign = 2
	}
	required := map[string]interface{}{
		vendor + "DeltaTE":                    optionalFloat(p.DeltaTE),
		vendor + "PartialFourierFactor":       optionalFloat(p.PartialFourierFactor),
		vendor + "ParallelAccelerationFactor": optionalInt(p.ParallelAccelerationFactor),
		vendor + "PhaseNegativeSign":          sign,
	}
	switch m {
	case models.Bruker, models.Philips:
		required[vendor+"FileNameFirstEchoB0Magnitude"] = magnitude
		required[vendor+"FileNameB0PhaseDifference"] = phase
	case models.GE:
		required[vendor+"FileNameDoubleEchoB0MagnitudePhaseRealImaginary"] = magnitude
	case models.Siemens:
		required[vendor+"FileNameDoubleEchoB0Magnitude"] = magnitude
		required[vendor+"FileNameB0PhaseDifference"] = phase
	}
	if m == models.Philips {
		required["philipsEPIFactor"] = optionalInt(p.EPIFactor)
		required["philipsStaticB0Field"] = optionalFloat(p.B0Field)
		required["philipsWaterFatShiftPerPixel"] = optionalFloat(p.WaterFatShift)
	} else {
		required[vendor+"EchoSpacing"] = optionalFloat(p.EchoSpacing)
	}
	return required
}

// SusceptibilityCorrection corrects the susceptibility artifacts using the
// B0 field maps imported with the data. The scanner vendor is read from
// the acquisition_parameters.py file of the import directory.
func SusceptibilityCorrection(ctx context.Context, eng engine.Engine, p SusceptibilityParams) (string, error) {
	acquisition := filepath.Join(p.RawDWIDir, "acquisition_parameters.py")
	if err := fsutil.RequireFiles(acquisition); err != nil {
		return "", err
	}
	name, err := paramfile.ReadAcquisitionParameters(acquisition)
	if err != nil {
		return "", err
	}
	manufacturer, err := models.ParseManufacturer(name)
	if err != nil {
		return "", err
	}

	magnitude := filepath.Join(p.RawDWIDir, "b0_magnitude.ima")
	phase := filepath.Join(p.RawDWIDir, "b0_phase.ima")
	maps := []string{magnitude}
	if manufacturer != models.GE {
		maps = append(maps, phase)
	}
	if err := fsutil.RequireFiles(maps...); err != nil {
		return "", err
	}

	required := requiredFieldMapParams(manufacturer, p, magnitude, phase)
	var missing []string
	for key, value := range required {
		if value == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", errdefs.MissingParameters(AlgorithmSusceptibility, missing)
	}
	log := logger.FromContext(ctx, "preproc")
	log.Debug().
		Str("manufacturer", manufacturer.String()).
		Msg("field map parameters resolved")

	params := paramfile.Params{
		"rawDwiDirectory":              p.RawDWIDir,
		"roughMaskDirectory":           p.RoughMaskDir,
		"outlierFilteredDwiDirectory":  p.OutliersDir,
		"outputWorkDirectory":          p.OutDir,
		"_subjectName":                 p.SubjectID,
		"correctionStrategy":           0,
		"importDwToB0Transformation":   0,
		"generateDwToB0Transformation": 1,
		"fileNameDwToB0Transformation": "",
		"DwToB0RegistrationParameter":  paramfile.Params(registrationParams(1, true, 10, 10, "56")),
	}
	for _, vendor := range []string{"bruker", "ge", "philips", "siemens"} {
		params = params.Merge(vendorDefaults(vendor))
	}
	params = params.Merge(paramfile.Params(required))
	return eng.Run(ctx, AlgorithmSusceptibility, params, p.OutDir)
}
