package spectral

// PowerSpectrum converts magnitude spectra to power spectra.
type PowerSpectrum struct{}

// NewPowerSpectrum creates a power spectrum calculator.
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// ComputeInto squares the magnitude bins into dst, reusing it when it
// already has the right length.
func (ps *PowerSpectrum) ComputeInto(magnitude, dst []float64) []float64 {
	if len(dst) != len(magnitude) {
		dst = make([]float64, len(magnitude))
	}
	for i, m := range magnitude {
		dst[i] = m * m
	}
	return dst
}
