package chroma

import (
	"math"
	"testing"
)

func TestClassProbsTop2(t *testing.T) {
	var p ClassProbs
	p[1] = 0.85 // C#
	p[4] = 0.60 // E
	p[0] = 0.05 // C

	top, runnerUp := p.Top2()
	if top != 1 || runnerUp != 4 {
		t.Fatalf("Top2 = %d, %d, want 1, 4", top, runnerUp)
	}

	idx, prob := p.Top1()
	if idx != 1 || prob != 0.85 {
		t.Fatalf("Top1 = %d, %v, want 1, 0.85", idx, prob)
	}
	if p.Note(idx) != "C#" {
		t.Fatalf("Note(%d) = %q, want C#", idx, p.Note(idx))
	}
}

func TestClassProbsTop2Order(t *testing.T) {
	var p ClassProbs
	p[0] = 0.7
	p[11] = 0.9

	top, runnerUp := p.Top2()
	if top != 11 || runnerUp != 0 {
		t.Fatalf("Top2 = %d, %d, want 11, 0", top, runnerUp)
	}
}

func TestClassProbsNormalized(t *testing.T) {
	var p ClassProbs
	for i := range p {
		p[i] = 2.0
	}

	n := p.Normalized()
	if math.Abs(n.Sum()-1.0) > 1e-12 {
		t.Fatalf("Normalized sum = %v, want 1", n.Sum())
	}
	if p[0] != 2.0 {
		t.Fatalf("Normalized mutated the receiver copy source: %v", p[0])
	}

	var zero ClassProbs
	if zero.Normalized() != zero {
		t.Fatalf("Normalized(zero) changed the vector")
	}
}
