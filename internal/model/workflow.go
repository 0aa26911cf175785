package model

import "fmt"

// Operation is the kind of workflow run.
type Operation string

const (
	OperationInstall Operation = "install"
	OperationBackup  Operation = "backup"
)

// WorkflowStep is one step of an install or backup run. Steps are executed
// in the order returned by InstallSteps/BackupSteps; each carries its own
// 0-100 sub-progress which resets when the step is entered.
type WorkflowStep string

const (
	StepFormatPartition  WorkflowStep = "format-partition"
	StepApplyImage       WorkflowStep = "apply-image"
	StepImportDrivers    WorkflowStep = "import-drivers"
	StepRepairBoot       WorkflowStep = "repair-boot"
	StepAdvancedOptions  WorkflowStep = "apply-advanced-options"
	StepGenerateUnattend WorkflowStep = "generate-unattended-config"
	StepCleanup          WorkflowStep = "cleanup"
	StepComplete         WorkflowStep = "complete"
	StepReadConfig       WorkflowStep = "read-config"
	StepCaptureImage     WorkflowStep = "capture-image"
	StepVerifyBackup     WorkflowStep = "verify-backup"
)

// InstallSteps returns the install workflow step sequence.
func InstallSteps() []WorkflowStep {
	return []WorkflowStep{
		StepFormatPartition,
		StepApplyImage,
		StepImportDrivers,
		StepRepairBoot,
		StepAdvancedOptions,
		StepGenerateUnattend,
		StepCleanup,
		StepComplete,
	}
}

// BackupSteps returns the backup workflow step sequence.
func BackupSteps() []WorkflowStep {
	return []WorkflowStep{
		StepReadConfig,
		StepCaptureImage,
		StepVerifyBackup,
		StepRepairBoot,
		StepCleanup,
		StepComplete,
	}
}

// Steps returns the step sequence for an operation.
func (o Operation) Steps() []WorkflowStep {
	if o == OperationBackup {
		return BackupSteps()
	}
	return InstallSteps()
}

// StepError is a workflow step failure carrying the failing step.
type StepError struct {
	Step WorkflowStep
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %s failed: %s", e.Step, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }
