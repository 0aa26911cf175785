package printer

import "github.com/peforge/peforge/internal/model"

// Printer knows how to print partition and run information in different
// formats.
type Printer interface {
	PrintPartitions(partitions []model.Partition) error
	PrintRuns(runs []model.Run) error
	PrintRunDetail(run model.Run, steps []model.StepRecord) error
	PrintMessage(msg string) error
}
