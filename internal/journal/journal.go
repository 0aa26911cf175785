// Package journal persists workflow runs and their step outcomes.
package journal

import (
	"context"

	"github.com/peforge/peforge/internal/model"
)

// Repository is the interface for run persistence.
type Repository interface {
	CreateRun(ctx context.Context, r model.Run) error
	FinishRun(ctx context.Context, id string, status model.RunStatus, errText string) error
	RecordStep(ctx context.Context, s model.StepRecord) error
	GetRun(ctx context.Context, id string) (*model.Run, []model.StepRecord, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
}
