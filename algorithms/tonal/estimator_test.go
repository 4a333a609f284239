package tonal

import (
	"errors"
	"math/rand"
	"testing"
)

func TestEstimatorSine(t *testing.T) {
	e := NewEstimator(16000)

	est, err := e.Estimate(sineWave(440, 16000, 2048))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Method != MethodYin {
		t.Errorf("method = %q, want %q on a clean sine", est.Method, MethodYin)
	}
	if ratio := est.FrequencyHz / 440.0; ratio < 0.99 || ratio > 1.01 {
		t.Errorf("frequency = %v Hz, want within 1%% of 440", est.FrequencyHz)
	}
	if est.Confidence < 0.8 {
		t.Errorf("confidence = %v, want > 0.8", est.Confidence)
	}
}

func TestEstimatorZerosTooWeak(t *testing.T) {
	e := NewEstimator(16000)

	_, err := e.Estimate(make([]float64, 2048))
	if !errors.Is(err, ErrSignalTooWeak) {
		t.Fatalf("Estimate(zeros) error = %v, want ErrSignalTooWeak", err)
	}
}

func TestEstimatorNoiseRejected(t *testing.T) {
	e := NewEstimator(16000)

	r := rand.New(rand.NewSource(7))
	frame := make([]float64, 2048)
	for i := range frame {
		frame[i] = r.Float64() - 0.5
	}

	_, err := e.Estimate(frame)
	if !errors.Is(err, ErrNoPeakFound) {
		t.Fatalf("Estimate(noise) error = %v, want ErrNoPeakFound", err)
	}
}

func TestEstimatorFallsBackToACF(t *testing.T) {
	params := DefaultEstimatorParams()
	params.YinThreshold = 1e-9
	params.YinFallbackThreshold = 1e-9
	e := NewEstimatorWithParams(params)

	est, err := e.Estimate(sineWave(440, 16000, 2048))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Method != MethodACF {
		t.Fatalf("method = %q, want %q when the primary detector finds nothing", est.Method, MethodACF)
	}
	if ratio := est.FrequencyHz / 440.0; ratio < 0.99 || ratio > 1.01 {
		t.Errorf("frequency = %v Hz, want within 1%% of 440", est.FrequencyHz)
	}
}

func TestEstimatorCentroidLastResort(t *testing.T) {
	params := DefaultEstimatorParams()
	params.YinThreshold = 1e-9
	params.YinFallbackThreshold = 1e-9
	params.ACFPeakRatio = 2.0
	e := NewEstimatorWithParams(params)

	est, err := e.Estimate(sineWave(440, 16000, 2048))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Method != MethodCentroid {
		t.Fatalf("method = %q, want %q when both detectors fail on a tonal frame", est.Method, MethodCentroid)
	}
	if est.Confidence != params.CentroidConfidence {
		t.Errorf("confidence = %v, want the fixed %v", est.Confidence, params.CentroidConfidence)
	}
	if est.FrequencyHz < params.MinFrequency || est.FrequencyHz > params.MaxFrequency {
		t.Errorf("frequency = %v Hz, want inside [%v, %v]", est.FrequencyHz, params.MinFrequency, params.MaxFrequency)
	}
}

func TestEstimatorOutOfRange(t *testing.T) {
	params := DefaultEstimatorParams()
	params.ACFPeakRatio = 2.0
	e := NewEstimatorWithParams(params)

	// Above MaxFrequency; off the bin grid so leakage keeps the flatness
	// gate out of the way.
	_, err := e.Estimate(sineWave(2000.3, 16000, 2048))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Estimate(2 kHz) error = %v, want ErrOutOfRange", err)
	}
}

// YIN and autocorrelation agree within 1% on a clean sine.
func TestYinACFAgreement(t *testing.T) {
	params := DefaultEstimatorParams()
	yin := NewYin(params.SampleRate, params.YinThreshold, params.YinFallbackThreshold)
	acf := NewAutocorrelation(params.SampleRate, params.MinFrequency, params.MaxFrequency, params.RMSGate, params.ACFPeakRatio)

	for _, freq := range []float64{110, 330, 660} {
		frame := sineWave(freq, params.SampleRate, 2048)

		fromYin, err := yin.Detect(frame)
		if err != nil {
			t.Fatalf("yin %v Hz: %v", freq, err)
		}
		fromACF, err := acf.Detect(frame)
		if err != nil {
			t.Fatalf("acf %v Hz: %v", freq, err)
		}

		if ratio := fromYin.FrequencyHz / fromACF.FrequencyHz; ratio < 0.99 || ratio > 1.01 {
			t.Errorf("%v Hz: yin %v vs acf %v, want within 1%%", freq, fromYin.FrequencyHz, fromACF.FrequencyHz)
		}
	}
}

func TestDefaultEstimatorParamsFill(t *testing.T) {
	e := NewEstimatorWithParams(EstimatorParams{SampleRate: 48000})

	got := e.Params()
	if got.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000 kept", got.SampleRate)
	}
	want := DefaultEstimatorParams()
	if got.YinThreshold != want.YinThreshold || got.MaxFrequency != want.MaxFrequency {
		t.Errorf("zero fields not defaulted: got %+v", got)
	}
}
