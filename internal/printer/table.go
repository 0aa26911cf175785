package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/peforge/peforge/internal/model"
)

// TablePrinter prints partition and run information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintPartitions prints fixed-disk volumes in a table format.
func (t *TablePrinter) PrintPartitions(partitions []model.Partition) error {
	if len(partitions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "DRIVE\tLABEL\tTOTAL\tFREE\tSTYLE\tWINDOWS\tBOOT ENV")

	// Print rows.
	for _, p := range partitions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Drive(),
			p.Label,
			FormatMiB(p.TotalMB),
			FormatMiB(p.FreeMB),
			p.Style,
			yesNo(p.HasWindows),
			yesNo(p.IsBootEnvironment),
		)
	}

	return nil
}

// PrintRuns prints journaled runs in a table format.
func (t *TablePrinter) PrintRuns(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tOPERATION\tTARGET\tSTATUS\tSTARTED")

	// Print rows.
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Operation, r.Target, r.Status, TimeAgo(r.StartedAt))
	}

	return nil
}

// PrintRunDetail prints one run with its journaled steps.
func (t *TablePrinter) PrintRunDetail(run model.Run, steps []model.StepRecord) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", run.ID)
	fmt.Fprintf(t.writer, "Operation:  %s\n", run.Operation)
	fmt.Fprintf(t.writer, "Target:     %s\n", run.Target)
	fmt.Fprintf(t.writer, "Status:     %s\n", run.Status)
	fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(run.StartedAt))

	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*run.FinishedAt))
	}

	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", run.Error)
	}

	if len(steps) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tERROR")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Sequence, s.Name, s.Status, s.Error)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
