package tuner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pitchfolk/tonic/algorithms/common"
	"github.com/pitchfolk/tonic/algorithms/tonal"
	"github.com/pitchfolk/tonic/logging"
)

// Config is the full configuration tree for a tuning session. The zero value
// is not usable; Load starts from DefaultConfig, so partial YAML files
// inherit defaults for everything they omit.
type Config struct {
	SampleRate int     `json:"sample_rate" yaml:"sample_rate"` // analysis sample rate in Hz; chunks at other rates are resampled
	WindowSize int     `json:"window_size" yaml:"window_size"` // analysis frame length in samples (power of two)
	MinSamples int     `json:"min_samples" yaml:"min_samples"` // chunks shorter than this are skipped
	A4Hz       float64 `json:"a4_hz" yaml:"a4_hz"`             // concert pitch reference in Hz
	DCRemoval  bool    `json:"dc_removal" yaml:"dc_removal"`   // run a DC blocking filter before analysis

	LogLevel    string `json:"log_level" yaml:"log_level"`       // debug, info, warn, error or fatal
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"` // Prometheus listen address; empty disables the endpoint

	// Estimator tunes the classic chain. Its sample rate is overridden by
	// the session rate above.
	Estimator tonal.EstimatorParams `json:"estimator" yaml:"estimator"`
	Stability StabilityParams       `json:"stability" yaml:"stability"`
	Fusion    FusionParams          `json:"fusion" yaml:"fusion"`
	Throttle  ThrottleParams        `json:"throttle" yaml:"throttle"`
	ML        MLConfig              `json:"ml" yaml:"ml"`
}

// StabilityParams tunes the temporal hysteresis applied to note estimates.
// Switching away from an accepted note is deliberately stricter than keeping
// it.
type StabilityParams struct {
	HistorySize      int     `json:"history_size" yaml:"history_size"`             // retained recent estimates
	StableCount      int     `json:"stable_count" yaml:"stable_count"`             // agreeing frames before a note counts as stable
	StableMaxCents   float64 `json:"stable_max_cents" yaml:"stable_max_cents"`     // max average deviation to hold stability
	SwitchCount      int     `json:"switch_count" yaml:"switch_count"`             // occurrences required to displace an accepted note
	SwitchMaxCents   float64 `json:"switch_max_cents" yaml:"switch_max_cents"`     // max average deviation to allow a switch
	SilenceTimeoutMS int     `json:"silence_timeout_ms" yaml:"silence_timeout_ms"` // reset after this long without estimates
}

// SilenceTimeout returns the silence reset timeout as a duration.
func (p StabilityParams) SilenceTimeout() time.Duration {
	return time.Duration(p.SilenceTimeoutMS) * time.Millisecond
}

// FusionParams tunes how classifier output is reconciled with the classic
// estimation chain.
type FusionParams struct {
	Top1Weight      float64            `json:"top1_weight" yaml:"top1_weight"`           // weight of the top class probability
	MarginWeight    float64            `json:"margin_weight" yaml:"margin_weight"`       // weight of the top-1/top-2 margin
	MatchBoost      float64            `json:"match_boost" yaml:"match_boost"`           // multiplier when classifier and classic agree
	MismatchPenalty float64            `json:"mismatch_penalty" yaml:"mismatch_penalty"` // multiplier when they disagree
	DefaultFloor    float64            `json:"default_floor" yaml:"default_floor"`       // minimum fused confidence to keep a classifier result
	NoteFloors      map[string]float64 `json:"note_floors" yaml:"note_floors"`           // per-note floor overrides
	FreshnessMS     int                `json:"freshness_ms" yaml:"freshness_ms"`         // classifier results older than this are ignored
}

// Freshness returns the classifier result validity window as a duration.
func (p FusionParams) Freshness() time.Duration {
	return time.Duration(p.FreshnessMS) * time.Millisecond
}

// ThrottleParams tunes the adaptive frame throttle. When a frame takes longer
// than RaiseAboveMS the inter-frame delay grows by StepMS; after LowerAfter
// consecutive frames under LowerBelowMS it shrinks again.
type ThrottleParams struct {
	RaiseAboveMS int `json:"raise_above_ms" yaml:"raise_above_ms"` // frame time above this raises the delay
	LowerBelowMS int `json:"lower_below_ms" yaml:"lower_below_ms"` // frame time below this counts toward lowering
	LowerAfter   int `json:"lower_after" yaml:"lower_after"`       // consecutive fast frames before lowering
	StepMS       int `json:"step_ms" yaml:"step_ms"`               // delay adjustment step
	MaxDelayMS   int `json:"max_delay_ms" yaml:"max_delay_ms"`     // delay ceiling
}

// RaiseAbove returns the slow-frame threshold as a duration.
func (p ThrottleParams) RaiseAbove() time.Duration {
	return time.Duration(p.RaiseAboveMS) * time.Millisecond
}

// LowerBelow returns the fast-frame threshold as a duration.
func (p ThrottleParams) LowerBelow() time.Duration {
	return time.Duration(p.LowerBelowMS) * time.Millisecond
}

// Step returns the delay adjustment step as a duration.
func (p ThrottleParams) Step() time.Duration {
	return time.Duration(p.StepMS) * time.Millisecond
}

// MaxDelay returns the delay ceiling as a duration.
func (p ThrottleParams) MaxDelay() time.Duration {
	return time.Duration(p.MaxDelayMS) * time.Millisecond
}

// MLConfig tunes the classifier side of a session. The classifier only runs
// when an inference engine is attached and Enabled is true.
type MLConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	IntervalMS     int     `json:"interval_ms" yaml:"interval_ms"`         // classifier tick cadence
	CooldownFactor float64 `json:"cooldown_factor" yaml:"cooldown_factor"` // cooldown = factor x last inference duration, at least one interval
	RingSeconds    float64 `json:"ring_seconds" yaml:"ring_seconds"`       // length of the private audio ring fed to the classifier
}

// Interval returns the classifier tick cadence as a duration.
func (c MLConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// DefaultConfig returns the configuration tuned for 16 kHz instrument and
// voice tracking.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		WindowSize: 2048,
		MinSamples: 1024,
		A4Hz:       440.0,
		DCRemoval:  false,
		LogLevel:   "info",
		Estimator:  tonal.DefaultEstimatorParams(),
		Stability:  DefaultStabilityParams(),
		Fusion:     DefaultFusionParams(),
		Throttle:   DefaultThrottleParams(),
		ML:         DefaultMLConfig(),
	}
}

// DefaultStabilityParams returns hysteresis settings that hold a note through
// one-frame disagreements while still following deliberate note changes.
func DefaultStabilityParams() StabilityParams {
	return StabilityParams{
		HistorySize:      3,
		StableCount:      2,
		StableMaxCents:   25.0,
		SwitchCount:      2,
		SwitchMaxCents:   15.0,
		SilenceTimeoutMS: 2000,
	}
}

// DefaultFusionParams returns reconciliation settings. C# carries a stricter
// floor because the classifier confuses it with C and D far more often than
// any other class.
func DefaultFusionParams() FusionParams {
	return FusionParams{
		Top1Weight:      0.7,
		MarginWeight:    0.3,
		MatchBoost:      1.2,
		MismatchPenalty: 0.8,
		DefaultFloor:    0.5,
		NoteFloors:      map[string]float64{"C#": 0.7},
		FreshnessMS:     1500,
	}
}

// DefaultThrottleParams returns throttle settings sized for real-time capture
// at 16 kHz.
func DefaultThrottleParams() ThrottleParams {
	return ThrottleParams{
		RaiseAboveMS: 25,
		LowerBelowMS: 15,
		LowerAfter:   3,
		StepMS:       5,
		MaxDelayMS:   250,
	}
}

// DefaultMLConfig returns classifier settings: a 500 ms cadence over roughly
// one second of recent audio.
func DefaultMLConfig() MLConfig {
	return MLConfig{
		Enabled:        true,
		IntervalMS:     500,
		CooldownFactor: 4.0,
		RingSeconds:    1.0,
	}
}

// Validate checks that the configuration is coherent. It returns a joined
// error listing all failures found.
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.WindowSize <= 0 || !common.IsPowerOfTwo(c.WindowSize) {
		errs = append(errs, fmt.Errorf("window_size must be a power of two, got %d", c.WindowSize))
	}
	if c.MinSamples <= 0 || c.MinSamples > c.WindowSize {
		errs = append(errs, fmt.Errorf("min_samples must be in [1, window_size], got %d", c.MinSamples))
	}
	if c.A4Hz <= 0 {
		errs = append(errs, fmt.Errorf("a4_hz must be positive, got %g", c.A4Hz))
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	if lo, hi := c.Estimator.MinFrequency, c.Estimator.MaxFrequency; lo > 0 && hi > 0 && lo >= hi {
		errs = append(errs, fmt.Errorf("estimator.min_frequency %g must be below max_frequency %g", lo, hi))
	}
	if c.Stability.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("stability.history_size must be positive, got %d", c.Stability.HistorySize))
	}
	if c.Stability.SwitchMaxCents > c.Stability.StableMaxCents {
		errs = append(errs, fmt.Errorf("stability.switch_max_cents %g must not exceed stable_max_cents %g",
			c.Stability.SwitchMaxCents, c.Stability.StableMaxCents))
	}
	if c.Fusion.MatchBoost < 1 {
		errs = append(errs, fmt.Errorf("fusion.match_boost must be at least 1, got %g", c.Fusion.MatchBoost))
	}
	if c.Fusion.MismatchPenalty <= 0 || c.Fusion.MismatchPenalty > 1 {
		errs = append(errs, fmt.Errorf("fusion.mismatch_penalty must be in (0, 1], got %g", c.Fusion.MismatchPenalty))
	}
	if c.Throttle.RaiseAboveMS > 0 && c.Throttle.LowerBelowMS >= c.Throttle.RaiseAboveMS {
		errs = append(errs, fmt.Errorf("throttle.lower_below_ms %d must be below raise_above_ms %d",
			c.Throttle.LowerBelowMS, c.Throttle.RaiseAboveMS))
	}
	if c.ML.Enabled {
		if c.ML.IntervalMS <= 0 {
			errs = append(errs, fmt.Errorf("ml.interval_ms must be positive, got %d", c.ML.IntervalMS))
		}
		if c.ML.RingSeconds <= 0 {
			errs = append(errs, fmt.Errorf("ml.ring_seconds must be positive, got %g", c.ML.RingSeconds))
		}
	}

	return errors.Join(errs...)
}

// Load reads the YAML configuration file at path and returns a validated
// Config. It is a convenience wrapper around LoadFromReader.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over DefaultConfig and
// validates the result. Useful in tests where configs are built from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
