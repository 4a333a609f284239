package main

import (
	"strings"
	"testing"

	"github.com/pitchfolk/tonic/tuner"
)

func TestCentsMeterNeedle(t *testing.T) {
	if center := centsMeter(0); center[11] != 'o' {
		t.Fatalf("needle at %q, want center", center)
	}
	if flat := centsMeter(-200); flat[1] != 'o' {
		t.Fatalf("needle at %q, want leftmost cell", flat)
	}
	if sharp := centsMeter(200); sharp[21] != 'o' {
		t.Fatalf("needle at %q, want rightmost cell", sharp)
	}
}

func TestRenderLine(t *testing.T) {
	line := renderLine(tuner.FusedResult{
		Note: "A", Octave: 4, Cents: 3.2, FrequencyHz: 440.8,
		Confidence: 0.82, IsStable: true, Source: tuner.SourceClassic,
	})
	for _, want := range []string{"*A4", "+3.2 cents", "440.80 Hz", "classic"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}

	if got := renderLine(tuner.FusedResult{Source: tuner.SourceNone}); got != "listening..." {
		t.Fatalf("empty result rendered %q", got)
	}

	mlLine := renderLine(tuner.FusedResult{Note: "G", Confidence: 0.7, Source: tuner.SourceML})
	if !strings.Contains(mlLine, "pitch class only") || strings.Contains(mlLine, "Hz") {
		t.Fatalf("classifier-only line %q", mlLine)
	}
}
