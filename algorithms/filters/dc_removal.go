package filters

import "math"

// defaultPole gives a cutoff of roughly 13 Hz at 16 kHz, well below the
// lowest mappable pitch.
const defaultPole = 0.995

// DCRemoval is a one-pole DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// It strips capture-side DC offset ahead of the energy gates without
// touching the pitch range. State carries across buffers; call Reset between
// discontinuous segments. Not safe for concurrent use.
//
// Reference: Julius O. Smith III, "Introduction to Digital Filters with
// Audio Applications", DC blocker section.
type DCRemoval struct {
	pole float64
	x1   float64 // previous input
	y1   float64 // previous output
}

// NewDCRemoval creates a DC blocker with the standard audio pole of 0.995.
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{pole: defaultPole}
}

// NewDCRemovalWithCutoff creates a DC blocker with the pole placed for the
// given -3 dB cutoff, R = 1 - 2*pi*fc/fs. Degenerate arguments fall back to
// the default pole.
func NewDCRemovalWithCutoff(sampleRate int, cutoffHz float64) *DCRemoval {
	dc := &DCRemoval{pole: defaultPole}
	if sampleRate > 0 && cutoffHz > 0 {
		pole := 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
		if pole > 0 && pole < 1 {
			dc.pole = pole
		}
	}
	return dc
}

// Process filters a single sample.
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.pole*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters samples in place and returns the slice.
func (dc *DCRemoval) ProcessBuffer(samples []float64) []float64 {
	for i, s := range samples {
		samples[i] = dc.Process(s)
	}
	return samples
}

// Reset clears the filter state.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// CutoffHz returns the approximate -3 dB cutoff at the given sample rate,
// fc = (1-R)*fs/(2*pi).
func (dc *DCRemoval) CutoffHz(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return (1.0 - dc.pole) * float64(sampleRate) / (2.0 * math.Pi)
}
