package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps the go-dsp real-input transform behind the single-sided views
// the analysis chain consumes.
type FFT struct{}

// NewFFT creates an FFT calculator.
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal. go-dsp
// handles arbitrary lengths, not just powers of two.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// HalfMagnitude computes the single-sided magnitude spectrum, bins 0..N/2.
// dst is reused when it already has the right length; otherwise a new slice
// is allocated. Callers on the real-time path hold on to the returned slice
// so steady-state extraction never allocates.
func (f *FFT) HalfMagnitude(x []float64, dst []float64) []float64 {
	spectrum := f.Compute(x)

	n := 0
	if len(spectrum) > 0 {
		n = len(spectrum)/2 + 1
	}
	if len(dst) != n {
		dst = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Hypot(real(spectrum[i]), imag(spectrum[i]))
	}
	return dst
}
