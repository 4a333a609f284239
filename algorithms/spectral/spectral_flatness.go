package spectral

import "math"

// flatnessFloor keeps near-silent bins out of the log.
const flatnessFloor = 1e-10

// SpectralFlatness computes Wiener entropy: the ratio of the geometric to
// the arithmetic mean of a magnitude spectrum. The pitch estimator uses it
// as a tonality gate, a held note sits well below 0.3 while broadband noise
// approaches 1.
type SpectralFlatness struct{}

// NewSpectralFlatness creates a flatness calculator.
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{}
}

// Compute returns the flatness of a magnitude spectrum in the 0-1 range.
// Bins at or below the floor are excluded from the geometric mean so a
// single silent bin cannot zero the whole measure.
func (sf *SpectralFlatness) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0
	}

	var logSum, sum float64
	counted := 0
	for _, m := range spectrum {
		sum += m
		if m > flatnessFloor {
			logSum += math.Log(m)
			counted++
		}
	}

	mean := sum / float64(len(spectrum))
	if counted == 0 || mean <= flatnessFloor {
		return 0
	}

	flatness := math.Exp(logSum/float64(counted)) / mean
	if flatness > 1 {
		flatness = 1
	}
	return flatness
}
