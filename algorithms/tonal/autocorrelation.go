package tonal

import (
	"fmt"

	"github.com/pitchfolk/tonic/algorithms/common"
)

// Autocorrelation implements time-domain autocorrelation pitch detection,
// used as the fallback when YIN yields nothing usable. The lag search is
// restricted to the configured frequency range and accepts the first local
// peak above a fraction of the in-range global maximum rather than the
// maximum itself, which keeps octave-below errors out on harmonic-rich
// signals.
type Autocorrelation struct {
	sampleRate int
	minFreq    float64 // lower bound of the lag search in Hz
	maxFreq    float64 // upper bound of the lag search in Hz
	rmsGate    float64 // minimum RMS level
	peakRatio  float64 // acceptance threshold as a fraction of the global max

	corr []float64
}

// NewAutocorrelation creates an autocorrelation detector for the given
// sample rate and frequency range.
func NewAutocorrelation(sampleRate int, minFreq, maxFreq, rmsGate, peakRatio float64) *Autocorrelation {
	return &Autocorrelation{
		sampleRate: sampleRate,
		minFreq:    minFreq,
		maxFreq:    maxFreq,
		rmsGate:    rmsGate,
		peakRatio:  peakRatio,
	}
}

// Detect estimates the fundamental frequency of a frame. Confidence is the
// normalized correlation r(tau)/r(0) at the accepted lag.
func (ac *Autocorrelation) Detect(frame []float64) (PitchEstimate, error) {
	n := len(frame)
	halfN := n / 2
	if halfN < 3 {
		return PitchEstimate{}, fmt.Errorf("frame of %d samples too short: %w", n, ErrNoPeakFound)
	}

	if rms := common.RMS(frame); rms < ac.rmsGate {
		return PitchEstimate{}, fmt.Errorf("rms %.2e under gate %.2e: %w", rms, ac.rmsGate, ErrSignalTooWeak)
	}

	ac.resize(halfN + 1)
	for tau := 0; tau <= halfN; tau++ {
		sum := 0.0
		for i := 0; i < n-tau; i++ {
			sum += frame[i] * frame[i+tau]
		}
		ac.corr[tau] = sum
	}

	minLag := int(float64(ac.sampleRate) / ac.maxFreq)
	maxLag := int(float64(ac.sampleRate) / ac.minFreq)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > halfN-1 {
		maxLag = halfN - 1
	}
	if minLag >= maxLag {
		return PitchEstimate{}, fmt.Errorf("lag range [%d, %d] empty for %d samples: %w", minLag, maxLag, n, ErrNoPeakFound)
	}

	globalMax := ac.corr[minLag]
	for tau := minLag + 1; tau <= maxLag; tau++ {
		if ac.corr[tau] > globalMax {
			globalMax = ac.corr[tau]
		}
	}
	if globalMax <= 0 {
		return PitchEstimate{}, fmt.Errorf("no positive correlation in lag range: %w", ErrNoPeakFound)
	}
	acceptance := ac.peakRatio * globalMax

	// First local peak above the acceptance threshold, scanning from the
	// shortest lag upward.
	peakTau := -1
	for tau := minLag; tau <= maxLag; tau++ {
		if ac.corr[tau] < acceptance {
			continue
		}
		if ac.corr[tau] > ac.corr[tau-1] && ac.corr[tau] > ac.corr[tau+1] {
			peakTau = tau
			break
		}
	}
	if peakTau < 0 {
		return PitchEstimate{}, fmt.Errorf("no local peak above %.0f%% of max: %w", ac.peakRatio*100, ErrNoPeakFound)
	}

	period, curvature := common.ParabolicPeak(ac.corr, peakTau)
	if curvature >= 0 {
		return PitchEstimate{}, fmt.Errorf("non-concave peak at lag %d: %w", peakTau, ErrNoPeakFound)
	}
	if period <= 0 {
		return PitchEstimate{}, fmt.Errorf("degenerate period at lag %d: %w", peakTau, ErrNoPeakFound)
	}

	return PitchEstimate{
		FrequencyHz: float64(ac.sampleRate) / period,
		Confidence:  ac.corr[peakTau] / ac.corr[0],
		Method:      MethodACF,
	}, nil
}

func (ac *Autocorrelation) resize(lags int) {
	if cap(ac.corr) < lags {
		ac.corr = make([]float64, lags)
		return
	}
	ac.corr = ac.corr[:lags]
}
