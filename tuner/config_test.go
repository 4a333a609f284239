package tuner

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadFromReaderOverlaysDefaults(t *testing.T) {
	doc := `
sample_rate: 48000
stability:
  switch_count: 3
estimator:
  yin_threshold: 0.15
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.Stability.SwitchCount != 3 {
		t.Errorf("SwitchCount = %d, want 3", cfg.Stability.SwitchCount)
	}
	if cfg.Estimator.YinThreshold != 0.15 {
		t.Errorf("YinThreshold = %v, want 0.15", cfg.Estimator.YinThreshold)
	}

	// Everything the document omits keeps its default.
	if cfg.WindowSize != 2048 {
		t.Errorf("WindowSize = %d, want default 2048", cfg.WindowSize)
	}
	if cfg.Stability.StableCount != 2 {
		t.Errorf("StableCount = %d, want default 2", cfg.Stability.StableCount)
	}
	if cfg.Fusion.MatchBoost != 1.2 {
		t.Errorf("MatchBoost = %v, want default 1.2", cfg.Fusion.MatchBoost)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("bogus_knob: 1\n")); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadFromReaderJoinsValidationErrors(t *testing.T) {
	doc := `
sample_rate: -1
window_size: 1000
log_level: loud
`
	_, err := LoadFromReader(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"sample_rate", "window_size", "log level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateSwitchStricterThanStay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stability.SwitchMaxCents = 30 // looser than stable_max_cents
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when switching is looser than staying")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("testdata/does-not-exist.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDurationHelpers(t *testing.T) {
	if got := DefaultStabilityParams().SilenceTimeout(); got != 2*time.Second {
		t.Errorf("SilenceTimeout = %v, want 2s", got)
	}
	th := DefaultThrottleParams()
	if th.RaiseAbove() != 25*time.Millisecond || th.LowerBelow() != 15*time.Millisecond {
		t.Errorf("throttle thresholds = %v/%v, want 25ms/15ms", th.RaiseAbove(), th.LowerBelow())
	}
	if got := DefaultMLConfig().Interval(); got != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", got)
	}
	if got := DefaultFusionParams().Freshness(); got != 1500*time.Millisecond {
		t.Errorf("Freshness = %v, want 1.5s", got)
	}
}
