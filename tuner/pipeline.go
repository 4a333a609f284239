package tuner

import (
	"errors"
	"fmt"

	"github.com/pitchfolk/tonic/algorithms/common"
	"github.com/pitchfolk/tonic/algorithms/windowing"
)

// ErrInsufficientData reports a chunk too short to analyze.
var ErrInsufficientData = errors.New("insufficient samples for analysis")

// Pipeline prepares decoded PCM chunks for the estimation chain: it selects
// the analysis tail, applies a Hann window and zero-pads short chunks up to a
// power-of-two length. All scratch buffers are allocated at construction and
// reused, so steady-state preparation does not allocate.
//
// A Pipeline belongs to a single session goroutine and is not safe for
// concurrent use.
type Pipeline struct {
	windowSize int
	minSamples int
	frame      []float64
	pad        []float64
	windows    map[int]*windowing.Hann
}

// NewPipeline creates a pipeline sized for the configured analysis window.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		windowSize: cfg.WindowSize,
		minSamples: cfg.MinSamples,
		frame:      make([]float64, cfg.WindowSize),
		pad:        make([]float64, cfg.WindowSize),
		windows:    make(map[int]*windowing.Hann),
	}
	p.windows[cfg.WindowSize] = windowing.NewHann(cfg.WindowSize)
	return p
}

// Normalize selects the analysis frame from a decoded chunk: the most recent
// windowSize samples when the chunk is long enough, otherwise the whole chunk
// zero-padded to a power-of-two length. The returned slice aliases internal
// scratch and is valid until the next call.
func (p *Pipeline) Normalize(pcm []float64) ([]float64, error) {
	if len(pcm) < p.minSamples {
		return nil, fmt.Errorf("%w: got %d samples, need %d", ErrInsufficientData, len(pcm), p.minSamples)
	}
	if len(pcm) >= p.windowSize {
		copy(p.frame, pcm[len(pcm)-p.windowSize:])
		return p.frame, nil
	}
	n := copy(p.frame, pcm)
	return p.PadToPowerOfTwo(p.frame[:n], p.windowSize), nil
}

// Window applies a Hann window to the frame in place. Window tables are
// cached per frame length.
func (p *Pipeline) Window(frame []float64) {
	w, ok := p.windows[len(frame)]
	if !ok {
		w = windowing.NewHann(len(frame))
		p.windows[len(frame)] = w
	}
	// tables are keyed by len(frame), so the size always matches
	_ = w.ApplyInPlace(frame)
}

// PadToPowerOfTwo zero-pads frame to the next power-of-two length, capped at
// maxSize. Frames already at a power-of-two length, and frames that cannot
// grow under the cap, are returned unchanged; padded frames alias internal
// scratch valid until the next call.
func (p *Pipeline) PadToPowerOfTwo(frame []float64, maxSize int) []float64 {
	if common.IsPowerOfTwo(len(frame)) {
		return frame
	}
	size := common.NextPowerOfTwo(len(frame))
	if size > maxSize {
		size = maxSize
	}
	if size <= len(frame) {
		return frame
	}
	if size > len(p.pad) {
		p.pad = make([]float64, size)
	}
	dst := p.pad[:size]
	n := copy(dst, frame)
	for i := n; i < size; i++ {
		dst[i] = 0
	}
	return dst
}
