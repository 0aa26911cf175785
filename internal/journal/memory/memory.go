package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "journal.Memory"})
	return nil
}

// Repository is an in-memory implementation of journal.Repository.
type Repository struct {
	runs   map[string]model.Run
	steps  map[string][]model.StepRecord
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		runs:   make(map[string]model.Run),
		steps:  make(map[string][]model.StepRecord),
		logger: cfg.Logger,
	}, nil
}

// CreateRun records a new run.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run with id %s: %w", run.ID, model.ErrAlreadyExists)
	}

	r.runs[run.ID] = run
	r.logger.Debugf("Created run in journal: %s", run.ID)

	return nil
}

// FinishRun sets the terminal status of a run.
func (r *Repository) FinishRun(ctx context.Context, id string, status model.RunStatus, errText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	now := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &now
	run.Error = errText
	r.runs[id] = run

	r.logger.Debugf("Finished run in journal: %s (%s)", id, status)

	return nil
}

// RecordStep appends a step outcome to a run.
func (r *Repository) RecordStep(ctx context.Context, s model.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[s.RunID]; !ok {
		return fmt.Errorf("run %s: %w", s.RunID, model.ErrNotFound)
	}

	r.steps[s.RunID] = append(r.steps[s.RunID], s)

	return nil
}

// GetRun retrieves a run and its step records by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, []model.StepRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	// Return copies.
	runCopy := run
	steps := append([]model.StepRecord{}, r.steps[id]...)

	return &runCopy, steps, nil
}

// ListRuns returns all runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })

	return runs, nil
}
