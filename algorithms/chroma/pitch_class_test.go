package chroma

import (
	"errors"
	"math"
	"testing"
)

func TestMapFrequencyReference(t *testing.T) {
	nm := NewNoteMapper(DefaultA4Hz)

	np, err := nm.MapFrequency(440)
	if err != nil {
		t.Fatalf("MapFrequency(440): %v", err)
	}
	if np.Note != "A" || np.Octave != 4 || np.Cents != 0 {
		t.Fatalf("MapFrequency(440) = %s%d %+v cents, want A4 0", np.Note, np.Octave, np.Cents)
	}
}

func TestMapFrequencyTable(t *testing.T) {
	nm := NewNoteMapper(DefaultA4Hz)

	cases := []struct {
		freq   float64
		note   string
		octave int
	}{
		{82.41, "E", 2},
		{110.00, "A", 2},
		{246.94, "B", 3},
		{261.63, "C", 4},
		{277.18, "C#", 4},
		{329.63, "E", 4},
		{783.99, "G", 5},
		{1479.98, "F#", 6},
	}

	for _, c := range cases {
		np, err := nm.MapFrequency(c.freq)
		if err != nil {
			t.Fatalf("MapFrequency(%v): %v", c.freq, err)
		}
		if np.Note != c.note || np.Octave != c.octave {
			t.Errorf("MapFrequency(%v) = %s%d, want %s%d", c.freq, np.Note, np.Octave, c.note, c.octave)
		}
		if math.Abs(np.Cents) > 2 {
			t.Errorf("MapFrequency(%v) cents = %v, want near 0 on a tempered pitch", c.freq, np.Cents)
		}
	}
}

func TestMapFrequencyCents(t *testing.T) {
	nm := NewNoteMapper(DefaultA4Hz)

	sharp, err := nm.MapFrequency(445)
	if err != nil {
		t.Fatalf("MapFrequency(445): %v", err)
	}
	if sharp.Note != "A" || sharp.Cents != 20 {
		t.Errorf("MapFrequency(445) = %s %+v cents, want A +20", sharp.Note, sharp.Cents)
	}

	flat, err := nm.MapFrequency(436)
	if err != nil {
		t.Fatalf("MapFrequency(436): %v", err)
	}
	if flat.Note != "A" || flat.Cents != -16 {
		t.Errorf("MapFrequency(436) = %s %+v cents, want A -16", flat.Note, flat.Cents)
	}
}

// Note, octave and cents must reconstruct the input frequency within the
// half-cent rounding tolerance.
func TestMapFrequencyRoundTrip(t *testing.T) {
	nm := NewNoteMapper(DefaultA4Hz)

	for freq := 82.0; freq <= 1500.0; freq *= 1.03 {
		np, err := nm.MapFrequency(freq)
		if err != nil {
			t.Fatalf("MapFrequency(%v): %v", freq, err)
		}

		idx, ok := NoteIndex(np.Note)
		if !ok {
			t.Fatalf("MapFrequency(%v) note %q not in table", freq, np.Note)
		}
		rebuilt := DefaultA4Hz * math.Exp2(float64(idx-9)/12.0) *
			math.Exp2(float64(np.Octave-4)) *
			math.Exp2(np.Cents/1200.0)

		if ratio := rebuilt / freq; ratio < 0.999 || ratio > 1.001 {
			t.Fatalf("MapFrequency(%v) rebuilds to %v", freq, rebuilt)
		}
	}
}

func TestMapFrequencyOutOfRange(t *testing.T) {
	nm := NewNoteMapper(DefaultA4Hz)

	for _, freq := range []float64{0, 50, 79.9, 1500.1, 8000} {
		_, err := nm.MapFrequency(freq)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("MapFrequency(%v) error = %v, want ErrOutOfRange", freq, err)
		}
	}
}

func TestMapFrequencyCustomA4(t *testing.T) {
	nm := NewNoteMapper(442)

	np, err := nm.MapFrequency(442)
	if err != nil {
		t.Fatalf("MapFrequency(442): %v", err)
	}
	if np.Note != "A" || np.Octave != 4 || np.Cents != 0 {
		t.Fatalf("MapFrequency(442) with A4=442 = %s%d %+v cents, want A4 0", np.Note, np.Octave, np.Cents)
	}

	if NewNoteMapper(0).A4() != DefaultA4Hz {
		t.Errorf("NewNoteMapper(0) did not fall back to standard pitch")
	}
}

func TestNoteIndex(t *testing.T) {
	if idx, ok := NoteIndex("C#"); !ok || idx != 1 {
		t.Errorf("NoteIndex(C#) = %d, %v, want 1, true", idx, ok)
	}
	if idx, ok := NoteIndex("B"); !ok || idx != 11 {
		t.Errorf("NoteIndex(B) = %d, %v, want 11, true", idx, ok)
	}
	if _, ok := NoteIndex("H"); ok {
		t.Errorf("NoteIndex(H) = ok, want miss")
	}
}
