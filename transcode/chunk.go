package transcode

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Chunk is the capture-side transport unit: little-endian PCM16 mono
// encoded as base64, tagged with its stream and declared sample rate.
type Chunk struct {
	StreamID   string `json:"stream_id"`
	SampleRate int    `json:"sample_rate"`
	Data       string `json:"data"`
}

// ErrMalformedChunk indicates a chunk that cannot be decoded: invalid
// base64, an odd byte count, no samples at all, or a non-positive sample
// rate.
var ErrMalformedChunk = errors.New("malformed pcm chunk")

// NewChunk encodes int16 samples into a Chunk.
func NewChunk(streamID string, sampleRate int, pcm []int16) Chunk {
	raw := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}
	return Chunk{
		StreamID:   streamID,
		SampleRate: sampleRate,
		Data:       base64.StdEncoding.EncodeToString(raw),
	}
}

// DecodeChunk decodes the chunk payload to normalized samples in [-1, 1).
func DecodeChunk(c Chunk) ([]float64, error) {
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrMalformedChunk, c.SampleRate)
	}
	raw, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedChunk)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrMalformedChunk, len(raw))
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float64(s) / 32768.0
	}
	return samples, nil
}

// ResampleLinear converts samples from srcRate to dstRate by linear
// interpolation. Matching or degenerate rates return the input unchanged.
func ResampleLinear(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}

	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float64, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}
