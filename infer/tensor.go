package infer

import "fmt"

// Input tensor layout and class order. These are frozen alongside the
// model weights: the spectrogram extractor and any trained classifier
// must agree on them exactly.
const (
	InputBands  = 64  // mel bands, first spectrogram axis
	InputFrames = 128 // analysis frames, second spectrogram axis
	NumClasses  = 12  // output pitch classes, chromatic order from C

	// TensorSize is the flattened element count of the
	// [1, InputBands, InputFrames, 1] input tensor.
	TensorSize = InputBands * InputFrames
)

// PackTensor flattens a [InputBands][InputFrames] log-mel matrix into the
// row-major (band-major) float32 input tensor. dst is reused when it has
// the capacity; the returned slice always has TensorSize elements.
func PackTensor(mel [][]float64, dst []float32) ([]float32, error) {
	if len(mel) != InputBands {
		return nil, fmt.Errorf("mel matrix has %d bands, want %d", len(mel), InputBands)
	}
	for b := range mel {
		if len(mel[b]) != InputFrames {
			return nil, fmt.Errorf("mel band %d has %d frames, want %d", b, len(mel[b]), InputFrames)
		}
	}

	if cap(dst) < TensorSize {
		dst = make([]float32, TensorSize)
	}
	dst = dst[:TensorSize]

	for b := 0; b < InputBands; b++ {
		row := mel[b]
		base := b * InputFrames
		for t := 0; t < InputFrames; t++ {
			dst[base+t] = float32(row[t])
		}
	}
	return dst, nil
}
