package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/peforge/peforge/internal/journal/sqlite/migrations"
	"github.com/peforge/peforge/internal/log"
	"github.com/peforge/peforge/internal/model"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "journal.SQLite"})
	return nil
}

// Repository is a SQLite implementation of journal.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite journal initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateRun records a new run.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	query := `
		INSERT INTO runs (id, operation, target, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var finishedAt *int64
	if run.FinishedAt != nil {
		u := run.FinishedAt.Unix()
		finishedAt = &u
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		string(run.Operation),
		run.Target,
		string(run.Status),
		run.StartedAt.Unix(),
		finishedAt,
		run.Error,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.") {
			return fmt.Errorf("run already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	r.logger.Debugf("Created run in journal: %s", run.ID)
	return nil
}

// FinishRun sets the terminal status of a run.
func (r *Repository) FinishRun(ctx context.Context, id string, status model.RunStatus, errText string) error {
	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, error = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC().Unix(), errText, id)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Finished run in journal: %s (%s)", id, status)
	return nil
}

// RecordStep appends a step outcome to a run.
func (r *Repository) RecordStep(ctx context.Context, s model.StepRecord) error {
	query := `
		INSERT INTO run_steps (run_id, sequence, name, status, error, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		s.RunID,
		s.Sequence,
		string(s.Name),
		string(s.Status),
		s.Error,
		s.At.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("run %s: %w", s.RunID, model.ErrNotFound)
		}
		return fmt.Errorf("could not insert step record: %w", err)
	}

	return nil
}

// GetRun retrieves a run and its step records by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, []model.StepRecord, error) {
	query := `
		SELECT id, operation, target, status, started_at, finished_at, error
		FROM runs
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	run, err := r.scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("could not query run: %w", err)
	}

	steps, err := r.runSteps(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return &run, steps, nil
}

// ListRuns returns all runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.Run, error) {
	query := `
		SELECT id, operation, target, status, started_at, finished_at, error
		FROM runs
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

func (r *Repository) runSteps(ctx context.Context, runID string) ([]model.StepRecord, error) {
	query := `
		SELECT run_id, sequence, name, status, error, at
		FROM run_steps
		WHERE run_id = ?
		ORDER BY sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query step records: %w", err)
	}
	defer rows.Close()

	var steps []model.StepRecord
	for rows.Next() {
		var s model.StepRecord
		var name, status string
		var at int64
		if err := rows.Scan(&s.RunID, &s.Sequence, &name, &status, &s.Error, &at); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		s.Name = model.WorkflowStep(name)
		s.Status = model.StepStatus(status)
		s.At = timeFromUnix(at)
		steps = append(steps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return steps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRun(s scanner) (model.Run, error) {
	var run model.Run
	var operation, status string
	var startedAt int64
	var finishedAt sql.NullInt64

	err := s.Scan(
		&run.ID,
		&operation,
		&run.Target,
		&status,
		&startedAt,
		&finishedAt,
		&run.Error,
	)
	if err != nil {
		return model.Run{}, err
	}

	run.Operation = model.Operation(operation)
	run.Status = model.RunStatus(status)
	run.StartedAt = timeFromUnix(startedAt)
	if finishedAt.Valid {
		t := timeFromUnix(finishedAt.Int64)
		run.FinishedAt = &t
	}

	return run, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
