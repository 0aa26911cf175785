package model

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus is the recorded outcome of one workflow step.
type StepStatus string

const (
	// StepStatusOK means the step finished cleanly.
	StepStatusOK StepStatus = "ok"
	// StepStatusWarning means the step failed but the run continued.
	StepStatusWarning StepStatus = "warning"
	// StepStatusFailed means the step failed and aborted the run.
	StepStatusFailed StepStatus = "failed"
)

// Run is one recorded workflow execution.
type Run struct {
	ID        string
	Operation Operation
	// Target is the drive letter the run operated on.
	Target     string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	// Error is the single human-readable failure reason, empty on
	// success.
	Error string
}

// StepRecord is the journal entry of one executed step.
type StepRecord struct {
	RunID string
	// Sequence orders the steps within a run, starting at 1.
	Sequence int
	Name     WorkflowStep
	Status   StepStatus
	Error    string
	At       time.Time
}
