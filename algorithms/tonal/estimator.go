package tonal

import (
	"fmt"

	"github.com/pitchfolk/tonic/algorithms/common"
	"github.com/pitchfolk/tonic/algorithms/spectral"
)

// Detection method names reported in PitchEstimate.Method.
const (
	MethodYin      = "yin"
	MethodACF      = "acf"
	MethodCentroid = "centroid"
)

// PitchEstimate is one frequency estimate for a single analysis frame.
type PitchEstimate struct {
	FrequencyHz float64 `json:"frequency_hz"` // estimated fundamental in Hz
	Confidence  float64 `json:"confidence"`   // confidence score (0-1)
	Method      string  `json:"method"`       // detection method used
}

// EstimatorParams contains parameters for the classic estimation chain.
type EstimatorParams struct {
	SampleRate           int     `json:"sample_rate" yaml:"sample_rate"`                       // audio sample rate in Hz
	MinFrequency         float64 `json:"min_frequency" yaml:"min_frequency"`                   // lower bound of the valid pitch range in Hz
	MaxFrequency         float64 `json:"max_frequency" yaml:"max_frequency"`                   // upper bound of the valid pitch range in Hz
	YinThreshold         float64 `json:"yin_threshold" yaml:"yin_threshold"`                   // CMNDF acceptance threshold
	YinFallbackThreshold float64 `json:"yin_fallback_threshold" yaml:"yin_fallback_threshold"` // CMNDF global-minimum acceptance
	RMSGate              float64 `json:"rms_gate" yaml:"rms_gate"`                             // minimum RMS level
	EnergyGate           float64 `json:"energy_gate" yaml:"energy_gate"`                       // minimum mean power
	FlatnessGate         float64 `json:"flatness_gate" yaml:"flatness_gate"`                   // spectral flatness above this is treated as noise
	ACFPeakRatio         float64 `json:"acf_peak_ratio" yaml:"acf_peak_ratio"`                 // autocorrelation peak acceptance ratio
	CentroidFlatnessMax  float64 `json:"centroid_flatness_max" yaml:"centroid_flatness_max"`   // max flatness for the centroid last resort
	CentroidConfidence   float64 `json:"centroid_confidence" yaml:"centroid_confidence"`       // fixed confidence of centroid estimates
}

// DefaultEstimatorParams returns parameters tuned for instrument and voice
// pitch at 16 kHz.
func DefaultEstimatorParams() EstimatorParams {
	return EstimatorParams{
		SampleRate:           16000,
		MinFrequency:         80.0,
		MaxFrequency:         1500.0,
		YinThreshold:         0.1,
		YinFallbackThreshold: 0.5,
		RMSGate:              0.005,
		EnergyGate:           0.0005,
		FlatnessGate:         0.5,
		ACFPeakRatio:         0.3,
		CentroidFlatnessMax:  0.3,
		CentroidConfidence:   0.3,
	}
}

// Estimator runs the classic pitch estimation chain on normalized frames:
// energy/RMS and flatness gates, YIN as primary detector, autocorrelation
// as fallback, spectral centroid as last resort on clearly tonal frames.
// Results outside [MinFrequency, MaxFrequency] are discarded and the next
// stage is tried.
//
// An Estimator owns reusable spectrum buffers and is not safe for
// concurrent use.
type Estimator struct {
	params EstimatorParams

	yin      *Yin
	acf      *Autocorrelation
	fft      *spectral.FFT
	flatness *spectral.SpectralFlatness
	centroid *spectral.SpectralCentroid

	mag []float64
}

// NewEstimator creates an estimator with default parameters at the given
// sample rate.
func NewEstimator(sampleRate int) *Estimator {
	params := DefaultEstimatorParams()
	params.SampleRate = sampleRate
	return NewEstimatorWithParams(params)
}

// NewEstimatorWithParams creates an estimator with custom parameters.
// Non-positive fields fall back to the defaults.
func NewEstimatorWithParams(params EstimatorParams) *Estimator {
	defaults := DefaultEstimatorParams()
	if params.SampleRate <= 0 {
		params.SampleRate = defaults.SampleRate
	}
	if params.MinFrequency <= 0 {
		params.MinFrequency = defaults.MinFrequency
	}
	if params.MaxFrequency <= 0 {
		params.MaxFrequency = defaults.MaxFrequency
	}
	if params.YinThreshold <= 0 {
		params.YinThreshold = defaults.YinThreshold
	}
	if params.YinFallbackThreshold <= 0 {
		params.YinFallbackThreshold = defaults.YinFallbackThreshold
	}
	if params.RMSGate <= 0 {
		params.RMSGate = defaults.RMSGate
	}
	if params.EnergyGate <= 0 {
		params.EnergyGate = defaults.EnergyGate
	}
	if params.FlatnessGate <= 0 {
		params.FlatnessGate = defaults.FlatnessGate
	}
	if params.ACFPeakRatio <= 0 {
		params.ACFPeakRatio = defaults.ACFPeakRatio
	}
	if params.CentroidFlatnessMax <= 0 {
		params.CentroidFlatnessMax = defaults.CentroidFlatnessMax
	}
	if params.CentroidConfidence <= 0 {
		params.CentroidConfidence = defaults.CentroidConfidence
	}

	return &Estimator{
		params:   params,
		yin:      NewYin(params.SampleRate, params.YinThreshold, params.YinFallbackThreshold),
		acf:      NewAutocorrelation(params.SampleRate, params.MinFrequency, params.MaxFrequency, params.RMSGate, params.ACFPeakRatio),
		fft:      spectral.NewFFT(),
		flatness: spectral.NewSpectralFlatness(),
		centroid: spectral.NewSpectralCentroid(params.SampleRate),
	}
}

// Params returns the estimation parameters.
func (e *Estimator) Params() EstimatorParams {
	return e.params
}

// Estimate runs the detection chain on one frame of normalized samples.
// Frames under the energy or RMS gate return ErrSignalTooWeak; frames with
// no usable periodicity return ErrNoPeakFound or ErrOutOfRange, whichever
// the final stage produced.
func (e *Estimator) Estimate(frame []float64) (PitchEstimate, error) {
	if len(frame) == 0 {
		return PitchEstimate{}, fmt.Errorf("empty frame: %w", ErrNoPeakFound)
	}

	energy := common.Energy(frame)
	rms := common.RMS(frame)
	if energy < e.params.EnergyGate || rms < e.params.RMSGate {
		return PitchEstimate{}, fmt.Errorf("energy %.2e rms %.2e under gate: %w", energy, rms, ErrSignalTooWeak)
	}

	e.mag = e.fft.HalfMagnitude(frame, e.mag)
	flatness := e.flatness.Compute(e.mag)
	if flatness > e.params.FlatnessGate {
		return PitchEstimate{}, fmt.Errorf("non-tonal frame, flatness %.2f: %w", flatness, ErrNoPeakFound)
	}

	var lastErr error

	est, err := e.yin.Detect(frame)
	if err == nil {
		err = e.rangeCheck(est.FrequencyHz)
		if err == nil {
			return est, nil
		}
	}
	lastErr = err

	est, err = e.acf.Detect(frame)
	if err == nil {
		err = e.rangeCheck(est.FrequencyHz)
		if err == nil {
			return est, nil
		}
	}
	lastErr = err

	// Last resort: on a clearly tonal frame the spectral center of mass is
	// close enough to the dominant partial to be worth a low-confidence
	// estimate.
	if flatness < e.params.CentroidFlatnessMax {
		c := e.centroid.Compute(e.mag)
		if err := e.rangeCheck(c); err != nil {
			return PitchEstimate{}, err
		}
		return PitchEstimate{
			FrequencyHz: c,
			Confidence:  e.params.CentroidConfidence,
			Method:      MethodCentroid,
		}, nil
	}

	if lastErr == nil {
		lastErr = ErrNoPeakFound
	}
	return PitchEstimate{}, lastErr
}

func (e *Estimator) rangeCheck(freq float64) error {
	if freq < e.params.MinFrequency || freq > e.params.MaxFrequency {
		return fmt.Errorf("%.1f Hz outside [%.0f, %.0f]: %w", freq, e.params.MinFrequency, e.params.MaxFrequency, ErrOutOfRange)
	}
	return nil
}
