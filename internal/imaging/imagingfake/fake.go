// Package imagingfake provides an in-memory Engine for tests and dry runs.
package imagingfake

import (
	"context"
	"sync"

	"github.com/peforge/peforge/internal/imaging"
)

// Engine is a fake implementation of imaging.Engine. Operations succeed
// instantly after emitting a canned progress ramp.
type Engine struct {
	mu sync.Mutex

	// Err makes every operation fail with this error when set.
	Err error

	applies  []imaging.ApplyOptions
	captures []imaging.CaptureOptions
	drivers  []string
}

// NewEngine creates a fake image engine.
func NewEngine() *Engine { return &Engine{} }

var _ imaging.Engine = (*Engine)(nil)

func (e *Engine) ramp(sink imaging.Sink, status string) {
	if sink == nil {
		return
	}
	for _, p := range []int{0, 25, 50, 75, 100} {
		sink(p, status)
	}
}

func (e *Engine) Apply(_ context.Context, opts imaging.ApplyOptions) error {
	e.mu.Lock()
	e.applies = append(e.applies, opts)
	err := e.Err
	e.mu.Unlock()

	if err != nil {
		return err
	}
	e.ramp(opts.Progress, "Applying image")
	return nil
}

func (e *Engine) Capture(_ context.Context, opts imaging.CaptureOptions) error {
	e.mu.Lock()
	e.captures = append(e.captures, opts)
	err := e.Err
	e.mu.Unlock()

	if err != nil {
		return err
	}
	e.ramp(opts.Progress, "Capturing image")
	return nil
}

func (e *Engine) AddDrivers(_ context.Context, targetRoot, driverDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drivers = append(e.drivers, driverDir)
	return e.Err
}

func (e *Engine) ExportDrivers(_ context.Context, _, destDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Err
}

// Applies returns the recorded apply calls.
func (e *Engine) Applies() []imaging.ApplyOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]imaging.ApplyOptions{}, e.applies...)
}

// Drivers returns the driver directories passed to AddDrivers.
func (e *Engine) Drivers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.drivers...)
}

// Captures returns the recorded capture calls.
func (e *Engine) Captures() []imaging.CaptureOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]imaging.CaptureOptions{}, e.captures...)
}
