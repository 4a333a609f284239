package spectral

import (
	"math"
)

// MelScale provides mel frequency conversion and filter bank construction.
// The filterbank feeds the note classifier, so the construction here is part
// of a frozen contract: changing the point spacing or bin mapping changes the
// features a trained model sees.
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// CreateMelFilterBank builds numFilters triangular filters over the half
// spectrum of an fftSize transform. numFilters+2 points are spaced equally
// in mel between lowFreq and highFreq; point m is the left edge of filter m,
// point m+1 its peak and point m+2 its right edge.
func (ms *MelScale) CreateMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 {
		return nil
	}

	lowMel := ms.HzToMel(lowFreq)
	step := (ms.HzToMel(highFreq) - lowMel) / float64(numFilters+1)

	bins := make([]int, numFilters+2)
	for i := range bins {
		hz := ms.MelToHz(lowMel + float64(i)*step)
		b := int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		bins[i] = min(b, fftSize/2)
	}

	bank := make([][]float64, numFilters)
	for m := range bank {
		filter := make([]float64, fftSize/2+1)
		left, center, right := bins[m], bins[m+1], bins[m+2]
		for k := left; k < center && k < len(filter); k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right && k < len(filter); k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		bank[m] = filter
	}
	return bank
}

// ApplyFilterBank applies a mel filter bank to a power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}
	return ms.ApplyFilterBankInto(powerSpectrum, filterBank, nil)
}

// ApplyFilterBankInto applies a mel filter bank into dst, reusing it when it
// already has one slot per filter.
func (ms *MelScale) ApplyFilterBankInto(powerSpectrum []float64, filterBank [][]float64, dst []float64) []float64 {
	if len(dst) != len(filterBank) {
		dst = make([]float64, len(filterBank))
	}

	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		dst[i] = sum
	}
	return dst
}
