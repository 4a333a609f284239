// Command tonic listens to a microphone and prints live pitch estimates.
//
// Capture runs at the configured analysis rate, mono int16, one buffer per
// analysis window. Each buffer crosses the same chunk boundary remote
// callers use, so the whole intake path is exercised end to end. Without a
// classifier model the session runs the classic chain only.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gordonklaus/portaudio"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pitchfolk/tonic/logging"
	"github.com/pitchfolk/tonic/observe"
	"github.com/pitchfolk/tonic/transcode"
	"github.com/pitchfolk/tonic/tuner"
)

var version = "0.1.0"

// CLI defines the command line flags.
type CLI struct {
	Config      string           `short:"c" type:"path" help:"Path to a YAML config file."`
	Device      string           `short:"d" help:"Input device name substring; default input device when empty."`
	LogLevel    string           `help:"Override the configured log level (debug, info, warn, error, fatal)."`
	Metrics     string           `help:"Prometheus listen address, e.g. :9464; overrides the config file."`
	JSON        bool             `help:"Print one JSON result per line instead of the live display."`
	NoDC        bool             `name:"no-dc" help:"Disable the DC blocking filter applied to mic capture."`
	ListDevices bool             `help:"List input devices and exit."`
	Version     kong.VersionFlag `short:"v" help:"Print version and exit."`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("tonic"),
		kong.Description("Live microphone pitch tracker: classic estimation with optional classifier fusion."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	kctx.FatalIfErrorf(run(cli))
}

func run(cli *CLI) error {
	if cli.ListDevices {
		return listDevices(os.Stdout)
	}

	cfg := tuner.DefaultConfig()
	if cli.Config != "" {
		loaded, err := tuner.Load(cli.Config)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	// Mic capture usually carries a DC offset, so the blocker is on here
	// even though the library default is off.
	cfg.DCRemoval = !cli.NoDC
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.Metrics != "" {
		cfg.MetricsAddr = cli.Metrics
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.NewStderrLogger()
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "tonic",
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("metrics provider: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Error(err, "metrics provider shutdown")
			}
		}()
		defer serveMetrics(cfg.MetricsAddr, logger)()
	}

	streamID := fmt.Sprintf("mic-%d", os.Getpid())
	disp := newDisplay(os.Stdout, cli.JSON)

	sess, err := tuner.NewSession(cfg, streamID, tuner.SessionOptions{
		OnResult: disp.Show,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Stop()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}
	defer portaudio.Terminate()

	// One capture buffer per analysis window: 2048 samples at 16 kHz gives
	// a 128 ms update cadence.
	stream, err := openStream(cli.Device, cfg.SampleRate, cfg.WindowSize, func(in []int16) {
		// Runs on the capture callback goroutine; PushChunk never blocks
		// and the session counts anything it sheds.
		sess.PushChunk(transcode.NewChunk(streamID, cfg.SampleRate, in))
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer stream.Stop()

	logger.Info("listening", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"window":      cfg.WindowSize,
		"stream_id":   streamID,
	})
	<-ctx.Done()
	disp.Close()
	return nil
}

// openStream opens a mono int16 capture stream on the default input device,
// or on the first input device whose name contains nameLike.
func openStream(nameLike string, sampleRate, frames int, cb func([]int16)) (*portaudio.Stream, error) {
	if nameLike == "" {
		return portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frames, cb)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.MaxInputChannels == 0 || !strings.Contains(strings.ToLower(d.Name), strings.ToLower(nameLike)) {
			continue
		}
		p := portaudio.LowLatencyParameters(d, nil)
		p.Input.Channels = 1
		p.SampleRate = float64(sampleRate)
		p.FramesPerBuffer = frames
		return portaudio.OpenStream(p, cb)
	}
	return nil, fmt.Errorf("no input device matching %q", nameLike)
}

func listDevices(w io.Writer) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}
	def, _ := portaudio.DefaultInputDevice()
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		mark := " "
		if def != nil && d.Name == def.Name {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-48s %6.0f Hz  %d ch\n", mark, d.Name, d.DefaultSampleRate, d.MaxInputChannels)
	}
	return nil
}

// serveMetrics exposes /metrics on addr and returns a shutdown func. The
// Prometheus exporter registers on the default registry, which is what
// promhttp serves.
func serveMetrics(addr string, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics endpoint up", logging.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "metrics server")
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// display renders results on stdout. Frames arrive from session goroutines,
// so writes are serialized by a mutex.
type display struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
	enc  *json.Encoder
}

func newDisplay(w io.Writer, asJSON bool) *display {
	d := &display{out: w, json: asJSON}
	if asJSON {
		d.enc = json.NewEncoder(w)
	}
	return d
}

// Show implements the session result callback.
func (d *display) Show(r tuner.FusedResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.json {
		_ = d.enc.Encode(r)
		return
	}
	fmt.Fprintf(d.out, "\r%-78s", renderLine(r))
}

// Close terminates the live line so the shell prompt starts clean.
func (d *display) Close() {
	if d.json {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out)
}

func renderLine(r tuner.FusedResult) string {
	switch {
	case r.Note == "":
		return "listening..."
	case r.Source == tuner.SourceML:
		// Class probabilities carry no octave, so there is no needle to draw.
		return fmt.Sprintf(" %-4s pitch class only                conf %.2f  %s", r.Note, r.Confidence, r.Source)
	}
	mark := " "
	if r.IsStable {
		mark = "*"
	}
	return fmt.Sprintf("%s%-4s %s %+6.1f cents  %7.2f Hz  conf %.2f  %s",
		mark, fmt.Sprintf("%s%d", r.Note, r.Octave), centsMeter(r.Cents),
		r.Cents, r.FrequencyHz, r.Confidence, r.Source)
}

// centsMeter draws a 21-cell needle covering -50 to +50 cents.
func centsMeter(cents float64) string {
	const cells = 21
	c := cents
	if c < -50 {
		c = -50
	} else if c > 50 {
		c = 50
	}
	pos := int(math.Round((c + 50) / 100 * (cells - 1)))
	b := []byte("[---------------------]")
	b[1+cells/2] = '|'
	b[1+pos] = 'o'
	return string(b)
}
