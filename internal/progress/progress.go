// Package progress carries coarse run progress from the worker goroutine to
// whatever renders it, through a bounded event channel folded into a shared
// snapshot.
package progress

import (
	"sync"

	"github.com/peforge/peforge/internal/model"
)

// EventKind discriminates the progress events.
type EventKind int

const (
	// EventStepChanged marks the start of a new workflow step.
	EventStepChanged EventKind = iota
	// EventProgressChanged updates the percentage within the current step.
	EventProgressChanged
	// EventStatusChanged updates the free-text status line.
	EventStatusChanged
	// EventCompleted marks the successful end of the run. Terminal.
	EventCompleted
	// EventFailed marks the failed end of the run. Terminal.
	EventFailed
)

// Event is one progress update. Events within a step arrive in emission
// order; Completed or Failed is always the last event of a run.
type Event struct {
	Kind    EventKind
	Step    model.WorkflowStep
	Percent int
	Status  string
	Reason  string
}

// Reporter is the send side of the progress stream. It is owned by the
// single worker goroutine of a run; it is not safe for concurrent senders.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a reporter with a bounded buffer.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Reporter{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream.
func (r *Reporter) Events() <-chan Event { return r.ch }

// StepChanged reports the start of a step. The consumer resets the percent.
func (r *Reporter) StepChanged(step model.WorkflowStep) {
	r.ch <- Event{Kind: EventStepChanged, Step: step}
}

// Progress reports the completion percentage of the current step, clamped
// to 0..100.
func (r *Reporter) Progress(percent int) {
	r.ch <- Event{Kind: EventProgressChanged, Percent: clamp(percent)}
}

// Status reports a free-text status line.
func (r *Reporter) Status(text string) {
	r.ch <- Event{Kind: EventStatusChanged, Status: text}
}

// Completed reports the successful end of the run and closes the stream.
func (r *Reporter) Completed() {
	r.ch <- Event{Kind: EventCompleted, Percent: 100}
	close(r.ch)
}

// Failed reports the failed end of the run and closes the stream.
func (r *Reporter) Failed(reason string) {
	r.ch <- Event{Kind: EventFailed, Reason: reason}
	close(r.ch)
}

func clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// State is a snapshot of a run's progress.
type State struct {
	Operation model.Operation
	Step      model.WorkflowStep
	// StepIndex is 1-based; 0 means no step started yet.
	StepIndex int
	Percent   int
	Status    string
	Done      bool
	Failed    bool
	Reason    string
}

// Tracker folds drained events into a mutex-guarded snapshot. One goroutine
// drains, any goroutine may read the state.
type Tracker struct {
	mu     sync.Mutex
	state  State
	events <-chan Event
	closed bool
}

// NewTracker creates a tracker for one run's event stream.
func NewTracker(op model.Operation, events <-chan Event) *Tracker {
	return &Tracker{
		state:  State{Operation: op},
		events: events,
	}
}

// Drain consumes every queued event without blocking and folds it into the
// snapshot. It reports whether the stream is still open.
func (t *Tracker) Drain() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				t.closed = true
				return false
			}
			t.fold(ev)
		default:
			return !t.closed
		}
	}
}

func (t *Tracker) fold(ev Event) {
	switch ev.Kind {
	case EventStepChanged:
		t.state.Step = ev.Step
		t.state.StepIndex++
		t.state.Percent = 0
		t.state.Status = ""
	case EventProgressChanged:
		t.state.Percent = ev.Percent
	case EventStatusChanged:
		t.state.Status = ev.Status
	case EventCompleted:
		t.state.Done = true
		t.state.Percent = 100
	case EventFailed:
		t.state.Done = true
		t.state.Failed = true
		t.state.Reason = ev.Reason
	}
}

// State returns a copy of the current snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
