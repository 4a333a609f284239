package tuner

import (
	"math"
	"testing"
	"time"

	"github.com/pitchfolk/tonic/algorithms/chroma"
)

// probsFor builds a distribution concentrated on the named classes, with the
// remaining mass spread evenly over the rest.
func probsFor(t *testing.T, weights map[string]float64) chroma.ClassProbs {
	t.Helper()
	var p chroma.ClassProbs
	rest := 1.0
	for _, w := range weights {
		rest -= w
	}
	fill := rest / float64(len(p)-len(weights))
	for i := range p {
		p[i] = fill
	}
	for name, w := range weights {
		idx, ok := chroma.NoteIndex(name)
		if !ok {
			t.Fatalf("unknown note %q", name)
		}
		p[idx] = w
	}
	return p
}

func TestScoreBoostsAgreement(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())

	note, conf, ok := r.Score(probsFor(t, map[string]float64{"A": 0.9, "C": 0.05}), "A")
	if note != "A" || !ok {
		t.Fatalf("note = %s ok = %v, want a surviving A", note, ok)
	}
	if conf != 1.0 {
		t.Fatalf("confidence = %v, want capped at 1.0", conf)
	}
}

func TestScoreSuppressesDisagreeingSharpC(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())
	probs := probsFor(t, map[string]float64{"C#": 0.85, "C": 0.05})

	note, conf, ok := r.Score(probs, "D")
	if note != "C#" {
		t.Fatalf("top note = %s, want C#", note)
	}
	if ok {
		t.Fatalf("C# at confidence %v cleared its floor against a disagreeing classic note", conf)
	}
}

func TestScoreSharpCFloorIsStricter(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())

	// The same shape survives under the default floor for any other class.
	probs := probsFor(t, map[string]float64{"D": 0.85, "C": 0.05})
	if _, conf, ok := r.Score(probs, "E"); !ok {
		t.Fatalf("D at confidence %v should clear the default floor", conf)
	}
}

func TestScoreSilentClassicPath(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())

	_, conf, ok := r.Score(probsFor(t, map[string]float64{"G": 0.9, "C": 0.05}), "")
	if !ok {
		t.Fatalf("confident classifier result should fill silence, confidence = %v", conf)
	}
	want := (0.7*0.9 + 0.3*(0.9-0.05)) * 0.8
	if math.Abs(conf-want) > 1e-12 {
		t.Fatalf("confidence = %v, want %v", conf, want)
	}
}

func TestFuseClassicOnly(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())
	classic := &chroma.NotePitch{Note: "A", Octave: 4, FrequencyHz: 440.2, Cents: 1}

	res := r.Fuse(classic, true, 0.9, nil, time.Now())
	if res.Source != SourceClassic {
		t.Fatalf("source = %s, want classic", res.Source)
	}
	if res.Note != "A" || res.Octave != 4 || !res.IsStable || res.Confidence != 0.9 {
		t.Fatalf("result = %+v", res)
	}
}

func TestFuseFreshMLAdjustsConfidence(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())
	classic := &chroma.NotePitch{Note: "A", Octave: 4, FrequencyHz: 440}
	ml := &MLResult{Probs: probsFor(t, map[string]float64{"A": 0.9, "C": 0.05}), At: time.Now()}

	res := r.Fuse(classic, true, 0.6, ml, time.Now())
	if res.Source != SourceFused {
		t.Fatalf("source = %s, want fused", res.Source)
	}
	if res.Note != "A" {
		t.Fatalf("note = %s, the classic path owns the note", res.Note)
	}
	// The agreeing classifier scores a capped 1.0, averaged with 0.6.
	if math.Abs(res.Confidence-0.8) > 1e-12 {
		t.Fatalf("confidence = %v, want 0.8", res.Confidence)
	}
}

func TestFuseStaleMLIgnored(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())
	classic := &chroma.NotePitch{Note: "A", Octave: 4, FrequencyHz: 440}
	ml := &MLResult{Probs: probsFor(t, map[string]float64{"A": 0.9, "C": 0.05}), At: time.Now().Add(-3 * time.Second)}

	res := r.Fuse(classic, false, 0.6, ml, time.Now())
	if res.Source != SourceClassic || res.Confidence != 0.6 {
		t.Fatalf("stale classifier result was used: %+v", res)
	}
}

func TestFuseSuppressedMLLeavesClassicAlone(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())
	classic := &chroma.NotePitch{Note: "D", Octave: 4, FrequencyHz: 293.66}
	ml := &MLResult{Probs: probsFor(t, map[string]float64{"C#": 0.85, "C": 0.05}), At: time.Now()}

	res := r.Fuse(classic, true, 0.7, ml, time.Now())
	if res.Source != SourceClassic || res.Note != "D" || res.Confidence != 0.7 {
		t.Fatalf("suppressed classifier result leaked into %+v", res)
	}
}

func TestFuseMLFillsSilence(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())
	ml := &MLResult{Probs: probsFor(t, map[string]float64{"G": 0.9, "C": 0.05}), At: time.Now()}

	res := r.Fuse(nil, false, 0, ml, time.Now())
	if res.Source != SourceML || res.Note != "G" {
		t.Fatalf("result = %+v, want the classifier's G", res)
	}
	if res.Octave != 0 || res.FrequencyHz != 0 || res.IsStable {
		t.Fatalf("classifier-only result carries classic-path fields: %+v", res)
	}
}

func TestFuseNothing(t *testing.T) {
	r := NewReconciler(DefaultFusionParams())

	res := r.Fuse(nil, false, 0, nil, time.Now())
	if res.Source != SourceNone || res.Note != "" {
		t.Fatalf("result = %+v, want none", res)
	}
}
