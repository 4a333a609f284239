package tonal

import (
	"errors"
	"math"
	"testing"
)

func sineWave(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestYinDetectSine(t *testing.T) {
	y := NewYin(16000, 0.1, 0.5)

	for _, freq := range []float64{110, 220, 440, 880} {
		est, err := y.Detect(sineWave(freq, 16000, 2048))
		if err != nil {
			t.Fatalf("Detect(%v Hz): %v", freq, err)
		}
		if ratio := est.FrequencyHz / freq; ratio < 0.99 || ratio > 1.01 {
			t.Errorf("Detect(%v Hz) = %v Hz, want within 1%%", freq, est.FrequencyHz)
		}
		if est.Confidence < 0.9 {
			t.Errorf("Detect(%v Hz) confidence = %v, want > 0.9 on a clean sine", freq, est.Confidence)
		}
		if est.Method != MethodYin {
			t.Errorf("Detect(%v Hz) method = %q, want %q", freq, est.Method, MethodYin)
		}
	}
}

func TestYinZerosNoPeak(t *testing.T) {
	y := NewYin(16000, 0.1, 0.5)

	_, err := y.Detect(make([]float64, 2048))
	if !errors.Is(err, ErrNoPeakFound) {
		t.Fatalf("Detect(zeros) error = %v, want ErrNoPeakFound", err)
	}
}

func TestYinConstantFrameNoPeak(t *testing.T) {
	y := NewYin(16000, 0.1, 0.5)

	frame := make([]float64, 2048)
	for i := range frame {
		frame[i] = 0.5
	}

	_, err := y.Detect(frame)
	if !errors.Is(err, ErrNoPeakFound) {
		t.Fatalf("Detect(constant) error = %v, want ErrNoPeakFound", err)
	}
}

func TestYinShortFrame(t *testing.T) {
	y := NewYin(16000, 0.1, 0.5)

	_, err := y.Detect(make([]float64, 4))
	if !errors.Is(err, ErrNoPeakFound) {
		t.Fatalf("Detect(short) error = %v, want ErrNoPeakFound", err)
	}
}
