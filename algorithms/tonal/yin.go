package tonal

import (
	"fmt"

	"github.com/pitchfolk/tonic/algorithms/common"
)

// Yin implements the YIN pitch detection algorithm: squared difference
// function, cumulative mean normalized difference (CMNDF), absolute
// threshold with a walk to the local minimum, and parabolic refinement
// of the selected lag.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
type Yin struct {
	sampleRate        int
	threshold         float64 // CMNDF acceptance threshold
	fallbackThreshold float64 // global-minimum acceptance when no dip crosses the threshold

	diff  []float64
	cmndf []float64
}

// NewYin creates a YIN detector. Internal difference buffers are sized on
// first use and reused across calls.
func NewYin(sampleRate int, threshold, fallbackThreshold float64) *Yin {
	return &Yin{
		sampleRate:        sampleRate,
		threshold:         threshold,
		fallbackThreshold: fallbackThreshold,
	}
}

// Detect estimates the fundamental frequency of a frame. Confidence is the
// periodicity 1 - d'(tau). Frames with no CMNDF dip under the threshold fall
// back to the global minimum when it stays under the fallback threshold,
// otherwise ErrNoPeakFound is returned.
func (y *Yin) Detect(frame []float64) (PitchEstimate, error) {
	halfN := len(frame) / 2
	if halfN < 3 {
		return PitchEstimate{}, fmt.Errorf("frame of %d samples too short: %w", len(frame), ErrNoPeakFound)
	}
	y.resize(halfN)

	// Squared difference of the signal with a lagged version of itself.
	for tau := 0; tau < halfN; tau++ {
		sum := 0.0
		for i := 0; i < halfN; i++ {
			delta := frame[i] - frame[i+tau]
			sum += delta * delta
		}
		y.diff[tau] = sum
	}

	// Cumulative mean normalized difference. A zero running sum means a
	// constant frame; pin the value at 1 so no dip can be selected.
	y.cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < halfN; tau++ {
		runningSum += y.diff[tau]
		if runningSum > 0 {
			y.cmndf[tau] = y.diff[tau] * float64(tau) / runningSum
		} else {
			y.cmndf[tau] = 1.0
		}
	}

	// First dip under the threshold, walked forward to its local minimum.
	minTau := -1
	for tau := 2; tau < halfN; tau++ {
		if y.cmndf[tau] < y.threshold {
			for tau+1 < halfN && y.cmndf[tau+1] < y.cmndf[tau] {
				tau++
			}
			minTau = tau
			break
		}
	}

	// No dip crossed the threshold: accept the global minimum only when it
	// is convincing enough on its own.
	if minTau < 0 {
		globalTau := 2
		for tau := 3; tau < halfN; tau++ {
			if y.cmndf[tau] < y.cmndf[globalTau] {
				globalTau = tau
			}
		}
		if y.cmndf[globalTau] >= y.fallbackThreshold {
			return PitchEstimate{}, fmt.Errorf("weakest aperiodicity %.3f at lag %d: %w", y.cmndf[globalTau], globalTau, ErrNoPeakFound)
		}
		minTau = globalTau
	}

	period, _ := common.ParabolicPeak(y.cmndf, minTau)
	if period <= 0 {
		return PitchEstimate{}, fmt.Errorf("degenerate period at lag %d: %w", minTau, ErrNoPeakFound)
	}

	return PitchEstimate{
		FrequencyHz: float64(y.sampleRate) / period,
		Confidence:  1.0 - y.cmndf[minTau],
		Method:      MethodYin,
	}, nil
}

func (y *Yin) resize(halfN int) {
	if cap(y.diff) < halfN {
		y.diff = make([]float64, halfN)
		y.cmndf = make([]float64, halfN)
		return
	}
	y.diff = y.diff[:halfN]
	y.cmndf = y.cmndf[:halfN]
}
