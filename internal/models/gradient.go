package models

// GradientTable holds the diffusion encoding of an acquisition, one entry
// per volume.
type GradientTable struct {
	// BValues are the diffusion weightings in s/mm².
	BValues []float64

	// BVectors are the gradient directions, one row of three components per volume.
	BVectors [][3]float64

	// ShellCount is the number of distinct non-zero b-values.
	ShellCount int

	// NoDiffusionCount is the number of b≈0 volumes.
	NoDiffusionCount int
}

// Len returns the number of volumes described by the table.
func (g *GradientTable) Len() int {
	return len(g.BValues)
}
