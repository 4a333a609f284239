package spectral

// SpectralCentroid computes the amplitude-weighted mean frequency of a
// single-sided magnitude spectrum, in Hz. The estimator uses it as the
// last-resort frequency estimate when the time-domain methods fail on a
// clearly tonal frame.
type SpectralCentroid struct {
	sampleRate int
	freqs      []float64 // per-bin center frequencies, rebuilt on size change
}

// NewSpectralCentroid creates a centroid calculator for the given sample
// rate.
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{sampleRate: sampleRate}
}

// Compute returns the centroid of a single-sided magnitude spectrum, or 0
// for a degenerate or all-zero spectrum.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) < 2 {
		return 0
	}
	if len(sc.freqs) != len(spectrum) {
		sc.rebuildFreqs(len(spectrum))
	}

	var weighted, total float64
	for i, m := range spectrum {
		weighted += sc.freqs[i] * m
		total += m
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// rebuildFreqs maps bin i of an N/2+1 point half spectrum to i*fs/N.
func (sc *SpectralCentroid) rebuildFreqs(bins int) {
	n := (bins - 1) * 2
	sc.freqs = make([]float64, bins)
	for i := range sc.freqs {
		sc.freqs[i] = float64(i) * float64(sc.sampleRate) / float64(n)
	}
}
