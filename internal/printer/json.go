package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/peforge/peforge/internal/model"
)

// JSONPrinter prints partition and run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// partitionItem represents one volume in the partitions output.
type partitionItem struct {
	Drive             string `json:"drive"`
	Label             string `json:"label"`
	TotalMB           uint64 `json:"total_mb"`
	FreeMB            uint64 `json:"free_mb"`
	Style             string `json:"style"`
	HasWindows        bool   `json:"has_windows"`
	IsBootEnvironment bool   `json:"is_boot_environment"`
}

// runItem represents one run in the runs output.
type runItem struct {
	ID        string     `json:"id"`
	Operation string     `json:"operation"`
	Target    string     `json:"target"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	Finished  *time.Time `json:"finished_at"`
	Error     string     `json:"error,omitempty"`
}

// stepItem represents one journaled step in the run detail output.
type stepItem struct {
	Sequence int    `json:"sequence"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// runDetailOutput represents the full run detail output.
type runDetailOutput struct {
	runItem
	Steps []stepItem `json:"steps"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintPartitions prints fixed-disk volumes in JSON format.
func (j *JSONPrinter) PrintPartitions(partitions []model.Partition) error {
	items := make([]partitionItem, len(partitions))
	for i, p := range partitions {
		items[i] = partitionItem{
			Drive:             p.Drive(),
			Label:             p.Label,
			TotalMB:           p.TotalMB,
			FreeMB:            p.FreeMB,
			Style:             string(p.Style),
			HasWindows:        p.HasWindows,
			IsBootEnvironment: p.IsBootEnvironment,
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintRuns prints journaled runs in JSON format.
func (j *JSONPrinter) PrintRuns(runs []model.Run) error {
	items := make([]runItem, len(runs))
	for i, r := range runs {
		items[i] = newRunItem(r)
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintRunDetail prints one run with its journaled steps in JSON format.
func (j *JSONPrinter) PrintRunDetail(run model.Run, steps []model.StepRecord) error {
	output := runDetailOutput{
		runItem: newRunItem(run),
		Steps:   make([]stepItem, len(steps)),
	}
	for i, s := range steps {
		output.Steps[i] = stepItem{
			Sequence: s.Sequence,
			Name:     string(s.Name),
			Status:   string(s.Status),
			Error:    s.Error,
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func newRunItem(r model.Run) runItem {
	item := runItem{
		ID:        r.ID,
		Operation: string(r.Operation),
		Target:    r.Target,
		Status:    string(r.Status),
		StartedAt: r.StartedAt.UTC(),
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		item.Finished = &utcTime
	}
	return item
}
