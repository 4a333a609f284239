package tuner

import (
	"time"

	"github.com/pitchfolk/tonic/algorithms/chroma"
	"github.com/pitchfolk/tonic/algorithms/common"
)

// MLResult is one classifier output with its arrival time. Probabilities are
// indexed by pitch class in chroma.NoteNames order.
type MLResult struct {
	Probs chroma.ClassProbs
	At    time.Time
}

// Reconciler combines the classic estimation path with classifier output.
// The classic path owns the displayed note; a fresh classifier result that
// survives its per-note confidence floor adjusts the confidence, and
// supplies the note itself only while the classic path is silent.
type Reconciler struct {
	params FusionParams
}

// NewReconciler creates a reconciler with the given fusion settings.
// Non-positive fields and a nil floor map fall back to the defaults.
func NewReconciler(params FusionParams) *Reconciler {
	defaults := DefaultFusionParams()
	if params.Top1Weight <= 0 {
		params.Top1Weight = defaults.Top1Weight
	}
	if params.MarginWeight <= 0 {
		params.MarginWeight = defaults.MarginWeight
	}
	if params.MatchBoost <= 0 {
		params.MatchBoost = defaults.MatchBoost
	}
	if params.MismatchPenalty <= 0 {
		params.MismatchPenalty = defaults.MismatchPenalty
	}
	if params.DefaultFloor <= 0 {
		params.DefaultFloor = defaults.DefaultFloor
	}
	if params.NoteFloors == nil {
		params.NoteFloors = defaults.NoteFloors
	}
	if params.FreshnessMS <= 0 {
		params.FreshnessMS = defaults.FreshnessMS
	}
	return &Reconciler{params: params}
}

// Score computes the fused confidence of a classifier distribution against
// the classic note ("" while the classic path is silent): a weighted blend
// of the top probability and its margin over the runner-up, boosted when the
// classifier agrees with the classic note and penalized otherwise, then
// checked against the per-note floor. ok reports whether the result clears
// its floor.
func (r *Reconciler) Score(probs chroma.ClassProbs, classicNote string) (note string, confidence float64, ok bool) {
	top, runnerUp := probs.Top2()
	note = chroma.NoteNames[top]
	margin := probs[top] - probs[runnerUp]

	confidence = r.params.Top1Weight*probs[top] + r.params.MarginWeight*margin
	if classicNote != "" && note == classicNote {
		confidence *= r.params.MatchBoost
	} else {
		confidence *= r.params.MismatchPenalty
	}
	confidence = common.Clamp(confidence, 0, 1)

	floor := r.params.DefaultFloor
	if f, exists := r.params.NoteFloors[note]; exists {
		floor = f
	}
	return note, confidence, confidence >= floor
}

// Fuse produces the frame result. classic is nil when the classic path has
// no note this frame; stable and classicConf describe it otherwise. ml may
// be nil, and results older than the freshness window are ignored.
func (r *Reconciler) Fuse(classic *chroma.NotePitch, stable bool, classicConf float64, ml *MLResult, now time.Time) FusedResult {
	fresh := ml != nil && now.Sub(ml.At) <= r.params.Freshness()

	if classic == nil {
		if fresh {
			if note, conf, ok := r.Score(ml.Probs, ""); ok {
				return FusedResult{Note: note, Confidence: conf, Source: SourceML}
			}
		}
		return FusedResult{Source: SourceNone}
	}

	res := FusedResult{
		Note:        classic.Note,
		Octave:      classic.Octave,
		Cents:       classic.Cents,
		FrequencyHz: classic.FrequencyHz,
		Confidence:  classicConf,
		IsStable:    stable,
		Source:      SourceClassic,
	}
	if fresh {
		if _, conf, ok := r.Score(ml.Probs, classic.Note); ok {
			res.Confidence = (res.Confidence + conf) / 2
			res.Source = SourceFused
		}
	}
	return res
}
