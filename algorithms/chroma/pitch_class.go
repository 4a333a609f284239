package chroma

import (
	"errors"
	"fmt"
	"math"
)

// NoteNames lists the twelve pitch class names in chromatic order starting
// at C. ClassProbs vectors and the classifier output share this ordering.
var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// DefaultA4Hz is the standard concert pitch reference.
const DefaultA4Hz = 440.0

// Mappable frequency range in Hz, matching the pitch estimation range.
const (
	MinMappableHz = 80.0
	MaxMappableHz = 1500.0
)

// ErrOutOfRange indicates a frequency outside the mappable range.
var ErrOutOfRange = errors.New("frequency out of mappable range")

// NotePitch is a frequency resolved against equal temperament.
// Note, Octave and Cents reconstruct FrequencyHz within the half-cent
// rounding tolerance.
type NotePitch struct {
	Note        string  `json:"note"`         // pitch class name (C..B)
	Octave      int     `json:"octave"`       // scientific pitch octave
	FrequencyHz float64 `json:"frequency_hz"` // the input frequency
	Cents       float64 `json:"cents"`        // signed deviation from the perfect pitch, in [-50, 50]
}

// NoteMapper resolves frequencies to equal-temperament notes around a
// configurable A4 reference. The octave-4 frequency of every pitch class
// is derived once at construction.
type NoteMapper struct {
	a4   float64
	base [12]float64
}

// NewNoteMapper creates a mapper tuned to the given A4 reference in Hz.
// A non-positive reference falls back to standard pitch.
func NewNoteMapper(a4 float64) *NoteMapper {
	if a4 <= 0 {
		a4 = DefaultA4Hz
	}

	nm := &NoteMapper{a4: a4}
	for i := range nm.base {
		nm.base[i] = a4 * math.Exp2(float64(i-9)/12.0)
	}
	return nm
}

// A4 returns the reference pitch in Hz.
func (nm *NoteMapper) A4() float64 {
	return nm.a4
}

// MapFrequency resolves a frequency to its nearest equal-temperament note.
// Frequencies outside [MinMappableHz, MaxMappableHz] return ErrOutOfRange.
func (nm *NoteMapper) MapFrequency(freq float64) (NotePitch, error) {
	if freq < MinMappableHz || freq > MaxMappableHz {
		return NotePitch{}, fmt.Errorf("%.1f Hz outside [%v, %v]: %w", freq, MinMappableHz, MaxMappableHz, ErrOutOfRange)
	}

	// Half steps from the reference, then fold onto the chromatic table;
	// the reference sits at index 9 (A).
	halfSteps := int(math.Round(12 * math.Log2(freq/nm.a4)))
	noteIndex := ((9+halfSteps)%12 + 12) % 12

	octave := int(math.Round(4 + math.Log2(freq/nm.base[noteIndex])))
	perfect := nm.base[noteIndex] * math.Exp2(float64(octave-4))
	cents := math.Round(1200 * math.Log2(freq/perfect))

	return NotePitch{
		Note:        NoteNames[noteIndex],
		Octave:      octave,
		FrequencyHz: freq,
		Cents:       cents,
	}, nil
}

// NoteIndex returns the chromatic index of a pitch class name, or false
// for names outside the table.
func NoteIndex(name string) (int, bool) {
	for i, n := range NoteNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
