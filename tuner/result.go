package tuner

// Source values reported in FusedResult.Source.
const (
	SourceClassic = "classic" // classic estimation chain only
	SourceML      = "ml"      // classifier only, while the classic path is silent
	SourceFused   = "fused"   // classic note with classifier-adjusted confidence
	SourceNone    = "none"    // no pitch in either path
)

// FusedResult is the per-frame outcome handed to the result callback.
// Octave, Cents and FrequencyHz are zero when only the classifier supplied
// the note: class probabilities carry no octave information.
type FusedResult struct {
	Note        string  `json:"note"`         // note name, empty when Source is "none"
	Octave      int     `json:"octave"`       // scientific pitch notation octave
	Cents       float64 `json:"cents"`        // deviation from the tempered pitch in cents
	FrequencyHz float64 `json:"frequency_hz"` // smoothed frequency estimate in Hz
	Confidence  float64 `json:"confidence"`   // combined confidence (0-1)
	IsStable    bool    `json:"is_stable"`    // classic path stability flag
	Source      string  `json:"source"`       // which path produced the note
}
