// Package tuner orchestrates real-time pitch tracking: chunk intake and
// decoding, frame preparation, the classic estimation chain, note mapping,
// temporal stabilization, and reconciliation with an optional pitch-class
// classifier. A Session ties these together for one audio stream.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pitchfolk/tonic/algorithms/chroma"
	"github.com/pitchfolk/tonic/algorithms/common"
	"github.com/pitchfolk/tonic/algorithms/filters"
	"github.com/pitchfolk/tonic/algorithms/spectral"
	"github.com/pitchfolk/tonic/algorithms/tonal"
	"github.com/pitchfolk/tonic/infer"
	"github.com/pitchfolk/tonic/logging"
	"github.com/pitchfolk/tonic/observe"
	"github.com/pitchfolk/tonic/transcode"
)

// SessionOptions carries the optional collaborators of a session.
type SessionOptions struct {
	// OnResult receives one FusedResult per processed frame, plus the
	// no-note result emitted when the silence timeout clears the display.
	// It is called from session goroutines and must not block.
	OnResult func(FusedResult)

	// Engine runs the pitch-class classifier. Nil disables the ML path.
	Engine *infer.Engine

	// Logger defaults to the global logger.
	Logger logging.Logger

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Session consumes PCM chunks for one audio stream and emits fused pitch
// results. Chunks are pushed from the capture side and processed by a worker
// goroutine; when a classifier engine is attached, a second goroutine runs
// inference over a private ring of recent audio. Stop shuts both down and
// waits for them.
type Session struct {
	cfg      Config
	streamID string

	logger  logging.Logger
	metrics *observe.Metrics

	pipeline   *Pipeline
	dc         *filters.DCRemoval
	estimator  *tonal.Estimator
	mapper     *chroma.NoteMapper
	tracker    *StabilityTracker
	reconciler *Reconciler
	lastConf   float64 // confidence of the last accepted estimate, worker only

	engine        *infer.Engine
	mel           *spectral.MelSpectrogram
	tensor        []float32
	pcm           []float64 // ring snapshot scratch, ML goroutine only
	mlRing        *common.Ring[float64]
	mlMu          sync.Mutex // guards mlRing
	mlSem         *semaphore.Weighted
	mlLatest      atomic.Pointer[MLResult]
	cooldownUntil atomic.Int64 // unix nanos; ticks before this are skipped

	chunks   chan transcode.Chunk
	onResult func(FusedResult)

	lifeMu  sync.Mutex
	started bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewSession creates a session for the given stream. The configuration is
// validated; the estimator always runs at the session sample rate regardless
// of cfg.Estimator.SampleRate.
func NewSession(cfg Config, streamID string, opts SessionOptions) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if streamID == "" {
		return nil, errors.New("session: empty stream id")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	estParams := cfg.Estimator
	estParams.SampleRate = cfg.SampleRate

	s := &Session{
		cfg:        cfg,
		streamID:   streamID,
		logger:     logger.WithFields(logging.Fields{"component": "session", "stream_id": streamID}),
		metrics:    metrics,
		pipeline:   NewPipeline(cfg),
		estimator:  tonal.NewEstimatorWithParams(estParams),
		mapper:     chroma.NewNoteMapper(cfg.A4Hz),
		reconciler: NewReconciler(cfg.Fusion),
		chunks:     make(chan transcode.Chunk),
		onResult:   opts.OnResult,
	}
	s.tracker = NewStabilityTracker(cfg.Stability, s.silenceTimeout)
	if cfg.DCRemoval {
		s.dc = filters.NewDCRemoval()
	}

	if opts.Engine != nil && cfg.ML.Enabled {
		mp := spectral.DefaultMelSpectrogramParams()
		mp.SampleRate = cfg.SampleRate
		mp.WindowSize = cfg.WindowSize
		mel, err := spectral.NewMelSpectrogram(mp)
		if err != nil {
			return nil, fmt.Errorf("session: mel extractor: %w", err)
		}
		ringLen := int(cfg.ML.RingSeconds * float64(cfg.SampleRate))
		s.engine = opts.Engine
		s.mel = mel
		s.mlRing = common.NewRing[float64](ringLen)
		s.pcm = make([]float64, ringLen)
		s.mlSem = semaphore.NewWeighted(1)
	}
	return s, nil
}

// StreamID returns the stream this session accepts chunks for.
func (s *Session) StreamID() string {
	return s.streamID
}

// Start launches the session goroutines. It must be called once before
// PushChunk; ctx cancellation stops the session the same way Stop does.
func (s *Session) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.stopped.Load() {
		return errors.New("session: already stopped")
	}
	if s.started {
		return errors.New("session: already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	gctx := ctx
	s.group.Go(func() error { return s.run(gctx) })
	if s.engine != nil {
		s.group.Go(func() error { return s.runML(gctx) })
	}

	s.metrics.SessionStarted(ctx)
	s.logger.Info("session started", logging.Fields{
		"sample_rate": s.cfg.SampleRate,
		"ml":          s.engine != nil,
	})
	return nil
}

// PushChunk hands one chunk to the session without blocking and reports
// whether it was accepted. Chunks are dropped while the worker is busy,
// after Stop, and when they belong to a different stream.
func (s *Session) PushChunk(c transcode.Chunk) bool {
	if s.stopped.Load() {
		return false
	}
	if c.StreamID != s.streamID {
		s.metrics.RecordDrop(context.Background(), "stale")
		return false
	}
	select {
	case s.chunks <- c:
		return true
	default:
		s.metrics.RecordDrop(context.Background(), "busy")
		return false
	}
}

// Stop shuts the session down and waits for its goroutines. No results are
// delivered after Stop returns. Stop is idempotent.
func (s *Session) Stop() error {
	s.lifeMu.Lock()
	if s.stopped.Load() {
		s.lifeMu.Unlock()
		return nil
	}
	s.stopped.Store(true)
	started := s.started
	s.lifeMu.Unlock()

	if !started {
		s.tracker.Stop()
		return nil
	}

	s.cancel()
	err := s.group.Wait()
	s.tracker.Stop()
	s.metrics.SessionEnded(context.Background())
	s.logger.Info("session stopped")
	return err
}

// run is the worker loop: it pulls accepted chunks, enforces the adaptive
// frame throttle and processes one frame per chunk.
func (s *Session) run(ctx context.Context) error {
	var (
		delay     time.Duration
		streak    int
		lastFrame time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-s.chunks:
			if delay > 0 && time.Since(lastFrame) < delay {
				s.metrics.RecordDrop(ctx, "throttled")
				continue
			}

			start := time.Now()
			s.processChunk(ctx, c)
			elapsed := time.Since(start)
			lastFrame = time.Now()

			prev := delay
			delay, streak = nextDelay(delay, elapsed, streak, s.cfg.Throttle)
			if delay != prev {
				s.logger.Debug("frame delay adjusted", logging.Fields{
					"delay_ms": delay.Milliseconds(),
					"frame_ms": elapsed.Milliseconds(),
				})
			}
		}
	}
}

// nextDelay applies one throttle adjustment given the last frame's
// processing time. streak counts consecutive fast frames so that a single
// quick frame does not undo backpressure.
func nextDelay(delay, elapsed time.Duration, streak int, p ThrottleParams) (time.Duration, int) {
	switch {
	case elapsed > p.RaiseAbove():
		delay += p.Step()
		if ceil := p.MaxDelay(); delay > ceil {
			delay = ceil
		}
		return delay, 0
	case elapsed < p.LowerBelow():
		streak++
		if streak >= p.LowerAfter && delay > 0 {
			delay -= p.Step()
			if delay < 0 {
				delay = 0
			}
			return delay, 0
		}
		return delay, streak
	default:
		return delay, 0
	}
}

func (s *Session) processChunk(ctx context.Context, c transcode.Chunk) {
	samples, err := transcode.DecodeChunk(c)
	if err != nil {
		s.logger.Warn("dropping malformed chunk", logging.Fields{"error": err.Error()})
		s.metrics.RecordMalformed(ctx)
		return
	}
	if c.SampleRate != s.cfg.SampleRate {
		samples = transcode.ResampleLinear(samples, c.SampleRate, s.cfg.SampleRate)
	}
	if s.dc != nil {
		samples = s.dc.ProcessBuffer(samples)
	}
	if s.mlRing != nil {
		s.mlMu.Lock()
		s.mlRing.Append(samples)
		s.mlMu.Unlock()
	}

	start := time.Now()
	classic, stable, conf, method, err := s.analyzeFrame(samples)
	if err != nil {
		s.logger.Debug("skipping short chunk", logging.Fields{"samples": len(samples)})
		s.metrics.RecordDrop(ctx, "short")
		return
	}
	s.metrics.RecordFrame(ctx, time.Since(start), method)

	res := s.reconciler.Fuse(classic, stable, conf, s.mlLatest.Load(), time.Now())
	s.emit(res)
	s.metrics.RecordChunk(ctx)
}

// analyzeFrame runs the classic path over one chunk. A frame without a
// usable pitch keeps the previously accepted note on display until the
// silence timer clears it; only undersized chunks return an error.
func (s *Session) analyzeFrame(samples []float64) (classic *chroma.NotePitch, stable bool, conf float64, method string, err error) {
	frame, err := s.pipeline.Normalize(samples)
	if err != nil {
		return nil, false, 0, "", err
	}
	s.pipeline.Window(frame)

	est, estErr := s.estimator.Estimate(frame)
	if estErr != nil {
		classic, stable, conf = s.sticky()
		return classic, stable, conf, "none", nil
	}

	np, mapErr := s.mapper.MapFrequency(est.FrequencyHz)
	if mapErr != nil {
		classic, stable, conf = s.sticky()
		return classic, stable, conf, est.Method, nil
	}

	display, isStable := s.tracker.Observe(np)
	s.lastConf = est.Confidence
	return &display, isStable, est.Confidence, est.Method, nil
}

// sticky returns the tracker's accepted note for frames that produced no
// estimate of their own.
func (s *Session) sticky() (*chroma.NotePitch, bool, float64) {
	if np, stable, ok := s.tracker.Current(); ok {
		return &np, stable, s.lastConf
	}
	return nil, false, 0
}

// runML drives the classifier: on each tick outside the cooldown window it
// snapshots the audio ring, extracts a spectrogram and runs inference. The
// semaphore keeps inference single-flight.
func (s *Session) runML(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ML.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if time.Now().UnixNano() < s.cooldownUntil.Load() {
				continue
			}
			if !s.mlSem.TryAcquire(1) {
				continue
			}
			s.inferOnce(ctx)
			s.mlSem.Release(1)
		}
	}
}

func (s *Session) inferOnce(ctx context.Context) {
	s.mlMu.Lock()
	n := s.mlRing.CopyTo(s.pcm)
	s.mlMu.Unlock()
	if n < s.cfg.WindowSize {
		return // not enough audio buffered yet
	}

	start := time.Now()
	mel := s.mel.Extract(s.pcm[:n])
	s.metrics.RecordMel(ctx, time.Since(start))

	tensor, err := infer.PackTensor(mel, s.tensor)
	if err != nil {
		s.logger.Error(err, "spectrogram does not fit the model tensor")
		return
	}
	s.tensor = tensor

	start = time.Now()
	scores, err := s.engine.Infer(ctx, tensor)
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, infer.ErrUnavailable):
		s.metrics.RecordInference(ctx, elapsed, "unavailable")
		return
	case err != nil:
		s.metrics.RecordInference(ctx, elapsed, "error")
		s.logger.Warn("inference failed", logging.Fields{"error": err.Error()})
		return
	}
	s.metrics.RecordInference(ctx, elapsed, "ok")

	if len(scores) != infer.NumClasses {
		s.logger.Warn("unexpected class count from model", logging.Fields{"classes": len(scores)})
		return
	}
	var probs chroma.ClassProbs
	for i, v := range scores {
		probs[i] = float64(v)
	}
	s.mlLatest.Store(&MLResult{Probs: probs.Normalized(), At: time.Now()})

	cooldown := time.Duration(float64(elapsed) * s.cfg.ML.CooldownFactor)
	if tick := s.cfg.ML.Interval(); cooldown < tick {
		cooldown = tick
	}
	s.cooldownUntil.Store(time.Now().Add(cooldown).UnixNano())
}

// silenceTimeout runs on the tracker's timer goroutine when the silence
// window elapses with no accepted estimate.
func (s *Session) silenceTimeout() {
	if s.stopped.Load() {
		return
	}
	s.logger.Debug("silence timeout, clearing note")
	s.emit(FusedResult{Source: SourceNone})
}

func (s *Session) emit(res FusedResult) {
	if s.onResult != nil {
		s.onResult(res)
	}
}
