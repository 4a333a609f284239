// Package infer defines the boundary to the note classification model:
// the tensor layout contract, the Model interface implemented by actual
// runtimes, and the Engine lifecycle wrapper the analysis session talks to.
package infer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrUnavailable indicates the model is not Ready. Callers treat it as
// "continue without the classifier", never as fatal.
var ErrUnavailable = errors.New("model unavailable")

// Model runs one inference over a packed mel tensor.
//
// The input must be the [1, InputBands, InputFrames, 1] tensor produced by
// PackTensor; the output is NumClasses scores aligned with the chromatic
// pitch class order starting at C.
//
// Implementations must be safe for concurrent use; the session additionally
// single-flights its calls.
type Model interface {
	// Infer returns class scores for one packed spectrogram tensor.
	Infer(ctx context.Context, in []float32) ([]float32, error)

	// Close releases resources held by the model runtime.
	Close() error
}

// State is the Engine lifecycle state.
type State int32

const (
	StateUnloaded State = iota
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Loader produces a ready-to-use Model, typically by loading a runtime
// session from a file.
type Loader func(ctx context.Context) (Model, error)

// Engine wraps a lazily loaded Model behind a two-state lifecycle,
// Unloaded → Ready. Before Ready every Infer call returns ErrUnavailable
// so the caller's classic path can continue alone; WaitReady lets callers
// block for readiness instead.
type Engine struct {
	mu     sync.RWMutex
	model  Model
	closed bool

	state atomic.Int32
	ready chan struct{}
}

// NewEngine creates an engine in the Unloaded state.
func NewEngine() *Engine {
	return &Engine{ready: make(chan struct{})}
}

// Load runs the loader and, on success, transitions the engine to Ready.
// The model is loaded once; loading an already-ready engine is an error.
func (e *Engine) Load(ctx context.Context, load Loader) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("engine closed")
	}
	if State(e.state.Load()) == StateReady {
		return fmt.Errorf("engine already ready")
	}

	m, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	e.model = m
	e.state.Store(int32(StateReady))
	close(e.ready)
	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Ready reports whether inference is available.
func (e *Engine) Ready() bool {
	return e.State() == StateReady
}

// WaitReady blocks until the engine is Ready or ctx is done.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Infer delegates to the loaded model, or returns ErrUnavailable while the
// engine is not Ready. In-flight inference holds the model open against a
// concurrent Close.
func (e *Engine) Infer(ctx context.Context, in []float32) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.model == nil {
		return nil, ErrUnavailable
	}
	return e.model.Infer(ctx, in)
}

// Close releases the model and returns the engine to Unloaded. Closing is
// terminal; Load on a closed engine fails.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.state.Store(int32(StateUnloaded))

	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
