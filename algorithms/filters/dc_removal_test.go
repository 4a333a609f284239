package filters

import (
	"math"
	"testing"
)

func TestDCRemovalStripsOffset(t *testing.T) {
	dc := NewDCRemoval()

	// 220 Hz tone riding on a large DC offset.
	const n = 4096
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 + 0.25*math.Sin(2*math.Pi*220*float64(i)/16000)
	}
	dc.ProcessBuffer(samples)

	// After the transient settles the mean should be near zero.
	var mean float64
	for _, v := range samples[n/2:] {
		mean += v
	}
	mean /= float64(n / 2)
	if math.Abs(mean) > 0.01 {
		t.Fatalf("settled mean = %v, want near 0", mean)
	}
}

func TestDCRemovalPreservesTone(t *testing.T) {
	dc := NewDCRemoval()

	const n = 4096
	in := make([]float64, n)
	for i := range in {
		in[i] = 0.25 * math.Sin(2*math.Pi*220*float64(i)/16000)
	}
	out := make([]float64, n)
	copy(out, in)
	dc.ProcessBuffer(out)

	var inRMS, outRMS float64
	for i := n / 2; i < n; i++ {
		inRMS += in[i] * in[i]
		outRMS += out[i] * out[i]
	}
	inRMS = math.Sqrt(inRMS / float64(n/2))
	outRMS = math.Sqrt(outRMS / float64(n/2))

	if ratio := outRMS / inRMS; ratio < 0.98 || ratio > 1.02 {
		t.Fatalf("220 Hz RMS ratio = %v, want ~1", ratio)
	}
}

func TestDCRemovalCutoff(t *testing.T) {
	dc := NewDCRemovalWithCutoff(16000, 20)
	if got := dc.CutoffHz(16000); math.Abs(got-20) > 0.5 {
		t.Fatalf("CutoffHz = %v, want ~20", got)
	}

	// Degenerate arguments keep the default pole.
	dc = NewDCRemovalWithCutoff(0, 20)
	if dc.pole != defaultPole {
		t.Fatalf("pole = %v, want default %v", dc.pole, defaultPole)
	}
}

func TestDCRemovalReset(t *testing.T) {
	dc := NewDCRemoval()
	dc.Process(1)
	dc.Reset()
	if out := dc.Process(0); out != 0 {
		t.Fatalf("first output after Reset = %v, want 0", out)
	}
}
