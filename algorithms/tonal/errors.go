package tonal

import "errors"

// Sentinel errors of the estimation chain. Callers branch on them with
// errors.Is; none of them is fatal to a caller, they all mean "no usable
// pitch in this frame".
var (
	// ErrSignalTooWeak indicates the frame failed the energy or RMS gate.
	ErrSignalTooWeak = errors.New("signal too weak")

	// ErrNoPeakFound indicates no algorithm found a usable periodicity.
	ErrNoPeakFound = errors.New("no pitch peak found")

	// ErrOutOfRange indicates a detected frequency outside the valid
	// pitch range.
	ErrOutOfRange = errors.New("frequency out of range")
)
