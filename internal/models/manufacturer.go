package models

import (
	"goconnectomist/pkg/errdefs"
)

// Manufacturer identifies the scanner vendor. The numeric value is the code
// the engine expects.
type Manufacturer int

const (
	Bruker  Manufacturer = 0
	GE      Manufacturer = 1
	Philips Manufacturer = 2
	Siemens Manufacturer = 3
)

var manufacturerNames = []string{"Bruker", "GE", "Philips", "Siemens"}

// Manufacturers returns the supported vendor names ordered by code.
func Manufacturers() []string {
	return append([]string(nil), manufacturerNames...)
}

// ParseManufacturer maps a vendor name to its code. Names are case sensitive.
func ParseManufacturer(name string) (Manufacturer, error) {
	for code, candidate := range manufacturerNames {
		if candidate == name {
			return Manufacturer(code), nil
		}
	}
	return 0, errdefs.BadManufacturer(name, Manufacturers())
}

func (m Manufacturer) String() string {
	if int(m) >= 0 && int(m) < len(manufacturerNames) {
		return manufacturerNames[m]
	}
	return "Unknown"
}

// Code returns the engine integer code.
func (m Manufacturer) Code() int {
	return int(m)
}
