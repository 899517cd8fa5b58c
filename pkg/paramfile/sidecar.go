package paramfile

import (
	"os"
	"strings"

	"goconnectomist/pkg/errdefs"
)

// Minf holds the diffusion attributes of a .minf sidecar. Other attributes
// of the file are ignored.
type Minf struct {
	BValues      []float64
	Orientations [][3]float64
}

// ReadMinf reads attributes.bvalues and
// attributes.diffusion_gradient_orientations from a .minf sidecar. A parse
// failure, a missing key or a malformed value is a bad file error.
func ReadMinf(path string) (*Minf, error) {
	attributes, err := readBinding(path, "attributes")
	if err != nil {
		return nil, err
	}

	bvalues, ok := floatList(attributes["bvalues"])
	if !ok {
		return nil, errdefs.BadFile(path)
	}
	rawOrientations, ok := attributes["diffusion_gradient_orientations"].([]interface{})
	if !ok {
		return nil, errdefs.BadFile(path)
	}
	orientations := make([][3]float64, 0, len(rawOrientations))
	for _, raw := range rawOrientations {
		vector, ok := floatList(raw)
		if !ok || len(vector) != 3 {
			return nil, errdefs.BadFile(path)
		}
		orientations = append(orientations, [3]float64{vector[0], vector[1], vector[2]})
	}
	if len(orientations) != len(bvalues) {
		return nil, errdefs.BadFile(path)
	}

	return &Minf{BValues: bvalues, Orientations: orientations}, nil
}

// ReadAcquisitionParameters returns the first word of
// acquisitionParameters.manufacturer, e.g. "Siemens" for
// "Siemens Healthineers".
func ReadAcquisitionParameters(path string) (string, error) {
	params, err := readBinding(path, "acquisitionParameters")
	if err != nil {
		return "", err
	}
	manufacturer, ok := params["manufacturer"].(string)
	if !ok {
		return "", errdefs.BadFile(path)
	}
	fields := strings.Fields(manufacturer)
	if len(fields) == 0 {
		return "", errdefs.BadFile(path)
	}
	return fields[0], nil
}

func readBinding(path, name string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.BadFile(path)
	}
	bindings, err := Decode(data)
	if err != nil {
		return nil, errdefs.BadFile(path)
	}
	value, ok := bindings[name].(map[string]interface{})
	if !ok {
		return nil, errdefs.BadFile(path)
	}
	return value, nil
}

func floatList(v interface{}) ([]float64, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, len(items))
	for i, item := range items {
		switch n := item.(type) {
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		default:
			return nil, false
		}
	}
	return out, true
}
