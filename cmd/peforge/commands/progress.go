package commands

import (
	"time"

	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/progress"
)

// watchProgress runs fn on its own goroutine and logs tracker transitions
// until the run finishes. It returns fn's error.
func watchProgress(logger log.Logger, op model.Operation, tracker *progress.Tracker, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	totalSteps := len(op.Steps())
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last progress.State
	logState := func() {
		tracker.Drain()
		state := tracker.State()

		if state.Step != last.Step && state.Step != "" {
			logger.Infof("Step %d/%d: %s", state.StepIndex, totalSteps, state.Step)
		}
		if state.Percent != last.Percent {
			logger.Infof("%s: %d%%", state.Step, state.Percent)
		}
		if state.Status != last.Status && state.Status != "" {
			logger.Debugf("%s", state.Status)
		}

		last = state
	}

	for {
		select {
		case err := <-done:
			logState()
			return err
		case <-ticker.C:
			logState()
		}
	}
}
