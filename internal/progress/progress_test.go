package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peforge/peforge/internal/model"
	"github.com/peforge/peforge/internal/progress"
)

func TestTrackerFolding(t *testing.T) {
	tests := map[string]struct {
		emit     func(r *progress.Reporter)
		expState progress.State
		expOpen  bool
	}{
		"Events within a step should fold in order.": {
			emit: func(r *progress.Reporter) {
				r.StepChanged(model.StepApplyImage)
				r.Status("Applying image")
				r.Progress(42)
			},
			expState: progress.State{
				Operation: model.OperationInstall,
				Step:      model.StepApplyImage,
				StepIndex: 1,
				Percent:   42,
				Status:    "Applying image",
			},
			expOpen: true,
		},

		"A step change should reset percent and status.": {
			emit: func(r *progress.Reporter) {
				r.StepChanged(model.StepFormatPartition)
				r.Progress(90)
				r.Status("Formatting")
				r.StepChanged(model.StepApplyImage)
			},
			expState: progress.State{
				Operation: model.OperationInstall,
				Step:      model.StepApplyImage,
				StepIndex: 2,
			},
			expOpen: true,
		},

		"Out-of-range percentages should be clamped.": {
			emit: func(r *progress.Reporter) {
				r.StepChanged(model.StepApplyImage)
				r.Progress(250)
			},
			expState: progress.State{
				Operation: model.OperationInstall,
				Step:      model.StepApplyImage,
				StepIndex: 1,
				Percent:   100,
			},
			expOpen: true,
		},

		"Completion should mark the run done and close the stream.": {
			emit: func(r *progress.Reporter) {
				r.StepChanged(model.StepComplete)
				r.Completed()
			},
			expState: progress.State{
				Operation: model.OperationInstall,
				Step:      model.StepComplete,
				StepIndex: 1,
				Percent:   100,
				Done:      true,
			},
		},

		"Failure should carry the reason and close the stream.": {
			emit: func(r *progress.Reporter) {
				r.StepChanged(model.StepApplyImage)
				r.Failed("image file missing")
			},
			expState: progress.State{
				Operation: model.OperationInstall,
				Step:      model.StepApplyImage,
				StepIndex: 1,
				Done:      true,
				Failed:    true,
				Reason:    "image file missing",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			reporter := progress.NewReporter(64)
			tracker := progress.NewTracker(model.OperationInstall, reporter.Events())

			test.emit(reporter)
			open := tracker.Drain()

			assert.Equal(test.expOpen, open)
			assert.Equal(test.expState, tracker.State())
		})
	}
}

func TestTrackerDrainNonBlocking(t *testing.T) {
	assert := assert.New(t)

	reporter := progress.NewReporter(8)
	tracker := progress.NewTracker(model.OperationBackup, reporter.Events())

	// Nothing queued: drain must return immediately.
	assert.True(tracker.Drain())
	assert.Equal(progress.State{Operation: model.OperationBackup}, tracker.State())
}

func TestTrackerProgressNeverExceeds100(t *testing.T) {
	assert := assert.New(t)

	reporter := progress.NewReporter(256)
	tracker := progress.NewTracker(model.OperationInstall, reporter.Events())

	reporter.StepChanged(model.StepCaptureImage)
	for _, p := range []int{-5, 0, 50, 99, 100, 101, 1000} {
		reporter.Progress(p)
		tracker.Drain()
		st := tracker.State()
		assert.GreaterOrEqual(st.Percent, 0)
		assert.LessOrEqual(st.Percent, 100)
	}
}
