package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rahmanfadhil/deadline-radar/internal/models"
)

// QueryObserver records database query timing.
type QueryObserver interface {
	ObserveDBQuery(query string, duration time.Duration)
}

// RunRepository persists sync-run bookkeeping rows.
type RunRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB, metrics QueryObserver) *RunRepository {
	return &RunRepository{db: db, metrics: metrics}
}

func (r *RunRepository) observe(query string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(query, time.Since(start))
	}
}

// Create inserts a new run row with generated defaults.
func (r *RunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sync_runs (id, status, timezone, completed, total, progress, course_count, assignment_count, upcoming_count, undated_count, discarded_count, error_message, created_at, started_at, finished_at)
VALUES (:id, :status, :timezone, :completed, :total, :progress, :course_count, :assignment_count, :upcoming_count, :undated_count, :discarded_count, :error_message, :created_at, :started_at, :finished_at)`
	defer r.observe("sync_runs.create", time.Now())
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// GetByID returns a run row by its identifier.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.SyncRun, error) {
	const query = `SELECT id, status, timezone, completed, total, progress, course_count, assignment_count, upcoming_count, undated_count, discarded_count, error_message, created_at, started_at, finished_at
FROM sync_runs WHERE id = $1`
	defer r.observe("sync_runs.get_by_id", time.Now())
	var run models.SyncRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateRunParams defines the mutable fields of a run row.
type UpdateRunParams struct {
	Status          *models.RunStatus
	Completed       *int
	Total           *int
	Progress        *int
	CourseCount     *int
	AssignmentCount *int
	UpcomingCount   *int
	UndatedCount    *int
	DiscardedCount  *int
	ErrorMessage    *string
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Update persists the provided changes for a run row.
func (r *RunRepository) Update(ctx context.Context, id string, params UpdateRunParams) error {
	set := make([]string, 0, 12)
	args := make([]interface{}, 0, 13)

	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Completed != nil {
		add("completed", *params.Completed)
	}
	if params.Total != nil {
		add("total", *params.Total)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.CourseCount != nil {
		add("course_count", *params.CourseCount)
	}
	if params.AssignmentCount != nil {
		add("assignment_count", *params.AssignmentCount)
	}
	if params.UpcomingCount != nil {
		add("upcoming_count", *params.UpcomingCount)
	}
	if params.UndatedCount != nil {
		add("undated_count", *params.UndatedCount)
	}
	if params.DiscardedCount != nil {
		add("discarded_count", *params.DiscardedCount)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE sync_runs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args)+1)
	args = append(args, id)

	defer r.observe("sync_runs.update", time.Now())
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update sync run: %w", err)
	}
	return nil
}

// List returns recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, status, timezone, completed, total, progress, course_count, assignment_count, upcoming_count, undated_count, discarded_count, error_message, created_at, started_at, finished_at
FROM sync_runs ORDER BY created_at DESC LIMIT $1`
	defer r.observe("sync_runs.list", time.Now())
	var runs []models.SyncRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	return runs, nil
}

// FailInterrupted marks runs that never reached a terminal state as
// failed. Used at boot: queued work cannot survive a restart.
func (r *RunRepository) FailInterrupted(ctx context.Context, message string) (int64, error) {
	const query = `UPDATE sync_runs SET status = $1, error_message = $2, finished_at = $3 WHERE status IN ($4, $5)`
	defer r.observe("sync_runs.fail_interrupted", time.Now())
	result, err := r.db.ExecContext(ctx, query, models.RunStatusFailed, message, time.Now().UTC(), models.RunStatusQueued, models.RunStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted runs: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count interrupted runs: %w", err)
	}
	return count, nil
}
