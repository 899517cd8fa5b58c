// Package paramfile reads and writes the Python-literal text dialect spoken
// by the Connectomist engine: the parameter files handed to the engine and
// the sidecar metadata files (.minf, acquisition_parameters.py) it produces.
package paramfile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Params is a parameter mapping for one engine algorithm. Values may be
// string, bool, any integer or float type, []string, []int, []float64,
// nested Params (or map[string]interface{}) and nil.
type Params map[string]interface{}

// Merge copies every entry of other into p, overwriting existing keys.
func (p Params) Merge(other Params) Params {
	for k, v := range other {
		p[k] = v
	}
	return p
}

// WriteConfig writes the engine parameter file for algorithm: an
// algorithmName binding followed by a parameterValues mapping with sorted
// keys.
func WriteConfig(w io.Writer, algorithm string, params Params) error {
	data, err := EncodeConfig(algorithm, params)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// EncodeConfig returns the parameter file content for algorithm.
func EncodeConfig(algorithm string, params Params) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("algorithmName = ")
	buf.WriteString(quote(algorithm))
	buf.WriteString("\nparameterValues = ")
	if err := encodeMapping(&buf, params, 0); err != nil {
		return nil, errors.Wrapf(err, "encoding parameters of '%s'", algorithm)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Literal returns the Python-literal text of a single value.
func Literal(v interface{}) (string, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, 0); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeMapping(buf *bytes.Buffer, m map[string]interface{}, depth int) error {
	if len(m) == 0 {
		buf.WriteString("{}")
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat(" ", depth+1)
	buf.WriteString("{\n")
	for i, k := range keys {
		buf.WriteString(indent)
		buf.WriteString(quote(k))
		buf.WriteString(": ")
		if err := encodeValue(buf, m[k], depth+1); err != nil {
			return errors.Wrapf(err, "key '%s'", k)
		}
		if i < len(keys)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString(strings.Repeat(" ", depth))
	buf.WriteString("}")
	return nil
}

func encodeValue(buf *bytes.Buffer, v interface{}, depth int) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("None")
	case bool:
		if val {
			buf.WriteString("True")
		} else {
			buf.WriteString("False")
		}
	case string:
		buf.WriteString(quote(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float32:
		return writeFloat(buf, float64(val))
	case float64:
		return writeFloat(buf, val)
	case Params:
		return encodeMapping(buf, val, depth)
	case map[string]interface{}:
		return encodeMapping(buf, val, depth)
	case []string:
		items := make([]interface{}, len(val))
		for i, s := range val {
			items[i] = s
		}
		return encodeList(buf, items, depth)
	case []int:
		items := make([]interface{}, len(val))
		for i, n := range val {
			items[i] = n
		}
		return encodeList(buf, items, depth)
	case []float64:
		items := make([]interface{}, len(val))
		for i, f := range val {
			items[i] = f
		}
		return encodeList(buf, items, depth)
	case []interface{}:
		return encodeList(buf, val, depth)
	default:
		return errors.Errorf("unsupported parameter type %T", v)
	}
	return nil
}

func encodeList(buf *bytes.Buffer, items []interface{}, depth int) error {
	buf.WriteString("[")
	for i, item := range items {
		if i > 0 {
			buf.WriteString(", ")
		}
		if err := encodeValue(buf, item, depth); err != nil {
			return err
		}
	}
	buf.WriteString("]")
	return nil
}

// writeFloat mimics Python's float repr: plain notation with a decimal
// point in [1e-4, 1e16), exponent notation outside.
func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Errorf("non-finite float %v", f)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		buf.WriteString(strconv.FormatFloat(f, 'e', -1, 64))
		return nil
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	buf.WriteString(s)
	return nil
}

var quoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quote(s string) string {
	return fmt.Sprintf("'%s'", quoteReplacer.Replace(s))
}
