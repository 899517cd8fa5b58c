package paramfile

import (
	"sort"

	"goconnectomist/pkg/errdefs"
)

// Codes maps the accepted names of an enumerated engine parameter to the
// integer the engine expects.
type Codes map[string]int

// Names returns the accepted names, sorted.
func (c Codes) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the code of name, or a validation error naming what and
// the accepted values.
func (c Codes) Lookup(what, name string) (int, error) {
	code, ok := c[name]
	if !ok {
		return 0, errdefs.Validation("'%s' %s not supported, should be in %v.", name, what, c.Names())
	}
	return code, nil
}

// Bool encodes a flag the way the engine's checkboxes do.
func Bool(v bool) int {
	if v {
		return 2
	}
	return 0
}
