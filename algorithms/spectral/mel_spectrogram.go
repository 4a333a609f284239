package spectral

import (
	"fmt"
	"math"

	"github.com/pitchfolk/tonic/algorithms/windowing"
)

// MelSpectrogramParams contains parameters for log-mel spectrogram
// extraction. The defaults form the input contract of the note classifier:
// a [64][128] matrix from 16 kHz audio with 2048-sample Hann windows and an
// 8 kHz mel ceiling. Changing any of them invalidates models trained against
// that layout.
type MelSpectrogramParams struct {
	SampleRate int     `json:"sample_rate"`  // audio sample rate in Hz
	WindowSize int     `json:"window_size"`  // samples per analysis frame (power of two)
	MelBands   int     `json:"mel_bands"`    // number of mel filters / output rows
	NumFrames  int     `json:"num_frames"`   // fixed number of output columns
	FMin       float64 `json:"f_min"`        // lower mel edge in Hz
	FMax       float64 `json:"f_max"`        // upper mel edge in Hz
	LogEpsilon float64 `json:"log_epsilon"`  // additive epsilon inside the log
	LogFloorDB float64 `json:"log_floor_db"` // clamp for log energies
}

// DefaultMelSpectrogramParams returns the classifier contract parameters.
func DefaultMelSpectrogramParams() MelSpectrogramParams {
	return MelSpectrogramParams{
		SampleRate: 16000,
		WindowSize: 2048,
		MelBands:   64,
		NumFrames:  128,
		FMin:       0.0,
		FMax:       8000.0,
		LogEpsilon: 1e-10,
		LogFloorDB: -100.0,
	}
}

// MelSpectrogram extracts fixed-shape log-mel spectrograms. The triangular
// filter bank is built lazily on first use and cached for the lifetime of
// the extractor; all frame, spectrum, and output buffers are allocated once
// and reused, so steady-state extraction does not allocate.
//
// The returned matrix is owned by the extractor and valid until the next
// Extract call.
type MelSpectrogram struct {
	params MelSpectrogramParams

	window   *windowing.Hann
	fft      *FFT
	power    *PowerSpectrum
	melScale *MelScale

	filterBank [][]float64

	frame []float64
	mag   []float64
	pow   []float64
	mel   []float64
	out   [][]float64
}

// NewMelSpectrogram creates an extractor for the given parameters. Zero
// fields fall back to the contract defaults.
func NewMelSpectrogram(params MelSpectrogramParams) (*MelSpectrogram, error) {
	defaults := DefaultMelSpectrogramParams()
	if params.SampleRate <= 0 {
		params.SampleRate = defaults.SampleRate
	}
	if params.WindowSize <= 0 {
		params.WindowSize = defaults.WindowSize
	}
	if params.MelBands <= 0 {
		params.MelBands = defaults.MelBands
	}
	if params.NumFrames <= 0 {
		params.NumFrames = defaults.NumFrames
	}
	if params.FMax <= 0 {
		params.FMax = float64(params.SampleRate) / 2.0
	}
	if params.LogEpsilon <= 0 {
		params.LogEpsilon = defaults.LogEpsilon
	}
	if params.LogFloorDB == 0 {
		params.LogFloorDB = defaults.LogFloorDB
	}

	if params.FMin < 0 || params.FMin >= params.FMax {
		return nil, fmt.Errorf("invalid mel range [%v, %v]", params.FMin, params.FMax)
	}
	if params.FMax > float64(params.SampleRate)/2.0 {
		return nil, fmt.Errorf("mel ceiling %v exceeds Nyquist %v", params.FMax, float64(params.SampleRate)/2.0)
	}

	m := &MelSpectrogram{
		params:   params,
		window:   windowing.NewHann(params.WindowSize),
		fft:      NewFFT(),
		power:    NewPowerSpectrum(),
		melScale: NewMelScale(),
		frame:    make([]float64, params.WindowSize),
		mag:      make([]float64, params.WindowSize/2+1),
		pow:      make([]float64, params.WindowSize/2+1),
		mel:      make([]float64, params.MelBands),
	}

	m.out = make([][]float64, params.MelBands)
	for b := range m.out {
		m.out[b] = make([]float64, params.NumFrames)
	}

	return m, nil
}

// Params returns the extraction parameters.
func (m *MelSpectrogram) Params() MelSpectrogramParams {
	return m.params
}

// Extract computes the log-mel spectrogram of samples. The output shape is
// always [MelBands][NumFrames] regardless of input length: frame starts are
// spread over the input so exactly NumFrames windows fit, overlapping when
// the input is short and striding when it is long; input shorter than one
// window is zero-padded.
func (m *MelSpectrogram) Extract(samples []float64) [][]float64 {
	m.ensureFilterBank()

	w := m.params.WindowSize
	numFrames := m.params.NumFrames
	span := len(samples) - w

	for t := 0; t < numFrames; t++ {
		start := 0
		if span > 0 && numFrames > 1 {
			start = int(math.Round(float64(t) * float64(span) / float64(numFrames-1)))
		}

		end := start + w
		if end > len(samples) {
			end = len(samples)
		}
		var n int
		if start < len(samples) {
			n = copy(m.frame, samples[start:end])
		}
		for i := n; i < w; i++ {
			m.frame[i] = 0
		}

		m.window.ApplyInPlace(m.frame)
		m.mag = m.fft.HalfMagnitude(m.frame, m.mag)
		m.pow = m.power.ComputeInto(m.mag, m.pow)
		m.mel = m.melScale.ApplyFilterBankInto(m.pow, m.filterBank, m.mel)

		for b := 0; b < m.params.MelBands; b++ {
			v := 10.0 * math.Log10(m.mel[b]+m.params.LogEpsilon)
			if v < m.params.LogFloorDB {
				v = m.params.LogFloorDB
			}
			m.out[b][t] = v
		}
	}

	return m.out
}

// FilterBank returns the cached filter bank, building it if necessary.
// Exposed for inspection; the returned slices are the cache itself.
func (m *MelSpectrogram) FilterBank() [][]float64 {
	m.ensureFilterBank()
	return m.filterBank
}

func (m *MelSpectrogram) ensureFilterBank() {
	if m.filterBank != nil {
		return
	}
	m.filterBank = m.melScale.CreateMelFilterBank(
		m.params.MelBands,
		m.params.WindowSize,
		m.params.SampleRate,
		m.params.FMin,
		m.params.FMax,
	)
}
