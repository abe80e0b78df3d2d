package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rahmanfadhil/deadline-radar/internal/dto"
	"github.com/rahmanfadhil/deadline-radar/internal/models"
	"github.com/rahmanfadhil/deadline-radar/internal/repository"
	appErrors "github.com/rahmanfadhil/deadline-radar/pkg/errors"
	"github.com/rahmanfadhil/deadline-radar/pkg/export"
	"github.com/rahmanfadhil/deadline-radar/pkg/jobs"
)

type runStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
	GetByID(ctx context.Context, id string) (*models.SyncRun, error)
	Update(ctx context.Context, id string, params repository.UpdateRunParams) error
	List(ctx context.Context, limit int) ([]models.SyncRun, error)
	FailInterrupted(ctx context.Context, message string) (int64, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type scheduleBuilder interface {
	Build(ctx context.Context, token string, loc *time.Location, sink ProgressSink) (*BuildResult, error)
}

type runObserver interface {
	ObserveRun(status string, duration time.Duration)
}

// runPayload rides the in-memory queue only. The token must never touch
// the database or the logs.
type runPayload struct {
	Token    string
	Timezone string
}

// RunServiceConfig tunes run bookkeeping.
type RunServiceConfig struct {
	DefaultTimezone string
	HistoryLimit    int
	ResultTTL       time.Duration
}

// ScheduleExport is a rendered download of a finished schedule.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RunService owns the sync-run lifecycle: it accepts requests, hands the
// work to the background queue, answers status queries, and serves the
// finished schedule from the in-memory registry.
type RunService struct {
	repo      runStore
	queue     jobDispatcher
	registry  *scheduleRegistry
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RunServiceConfig

	csv *export.CSVExporter
	pdf *export.PDFExporter
}

// NewRunService constructs RunService.
func NewRunService(repo runStore, queue jobDispatcher, validate *validator.Validate, logger *zap.Logger, cfg RunServiceConfig) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &RunService{
		repo:      repo,
		queue:     queue,
		registry:  newScheduleRegistry(cfg.ResultTTL),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// AttachQueue wires the dispatcher after construction. The queue's
// worker needs the service for the schedule registry, so the two are
// built before being linked.
func (s *RunService) AttachQueue(queue jobDispatcher) {
	s.queue = queue
}

// Create persists a queued run and enqueues the sync job. The token is
// carried on the job payload only.
func (s *RunService) Create(ctx context.Context, token string, req dto.CreateRunRequest) (*dto.RunResponse, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "access token required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run request")
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = s.cfg.DefaultTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown timezone %q", timezone))
	}

	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "run queue not started")
	}

	run := &models.SyncRun{Status: models.RunStatusQueued, Timezone: timezone}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sync run")
	}

	job := jobs.Job{ID: run.ID, Type: "schedule_sync", Payload: runPayload{Token: token, Timezone: timezone}}
	if err := s.queue.Enqueue(job); err != nil {
		status := models.RunStatusFailed
		msg := "failed to enqueue run"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, run.ID, repository.UpdateRunParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue sync run")
	}

	return &dto.RunResponse{ID: run.ID, Status: run.Status, Timezone: timezone}, nil
}

// Get returns the bookkeeping row for one run.
func (s *RunService) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync run")
	}
	return run, nil
}

// List returns recent runs, newest first. The limit is clamped to the
// configured history window.
func (s *RunService) List(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	runs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync runs")
	}
	return runs, nil
}

// Schedule returns the finished week schedule of a run. A run that is
// still executing answers 409 so clients can tell "in flight" apart
// from "failed" and from "gone".
func (s *RunService) Schedule(ctx context.Context, id string) (*models.WeekSchedule, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !run.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "run still in progress")
	}
	if run.Status == models.RunStatusFailed {
		msg := "run failed"
		if run.ErrorMessage != nil && *run.ErrorMessage != "" {
			msg = "run failed: " + *run.ErrorMessage
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, msg)
	}
	schedule, ok := s.registry.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule no longer available, start a new run")
	}
	return schedule, nil
}

// Export renders a finished schedule as a CSV or PDF attachment.
func (s *RunService) Export(ctx context.Context, id, format string) (*ScheduleExport, error) {
	schedule, err := s.Schedule(ctx, id)
	if err != nil {
		return nil, err
	}

	dataset := scheduleDataset(schedule)
	subtitle := fmt.Sprintf("Generated %s (%s)", schedule.GeneratedAt.Format("2006-01-02 15:04 MST"), schedule.Timezone)

	switch strings.ToLower(format) {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ScheduleExport{Filename: fmt.Sprintf("week-schedule-%s.csv", id), ContentType: "text/csv", Content: content}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, "Week Schedule", subtitle)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ScheduleExport{Filename: fmt.Sprintf("week-schedule-%s.pdf", id), ContentType: "application/pdf", Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// RecoverInterrupted marks runs left QUEUED or PROCESSING by a previous
// process as failed. They cannot be replayed: the token was never stored.
func (s *RunService) RecoverInterrupted(ctx context.Context) {
	count, err := s.repo.FailInterrupted(ctx, "interrupted by restart")
	if err != nil {
		s.logger.Sugar().Warnw("failed to mark interrupted runs", "error", err)
		return
	}
	if count > 0 {
		s.logger.Sugar().Infow("interrupted runs marked failed", "count", count)
	}
}

func scheduleDataset(schedule *models.WeekSchedule) export.Dataset {
	headers := []string{"Day", "Course", "Assignment", "Due", "Days Left", "Hours Left"}
	rows := make([]map[string]string, 0)
	for _, bucket := range schedule.Days {
		for _, a := range bucket.Assignments {
			rows = append(rows, map[string]string{
				"Day":        bucket.Day,
				"Course":     a.Course,
				"Assignment": a.Name,
				"Due":        a.DueLabel,
				"Days Left":  fmt.Sprintf("%d", a.DaysLeft),
				"Hours Left": fmt.Sprintf("%d", a.HoursLeft),
			})
		}
	}
	for _, a := range schedule.NoDueDate {
		rows = append(rows, map[string]string{
			"Day":        models.NoDueDateBucket,
			"Course":     a.Course,
			"Assignment": a.Name,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// RunWorker bridges queue jobs to the aggregation pipeline and keeps the
// run row in sync while the pipeline executes.
type RunWorker struct {
	repo    runStore
	builder scheduleBuilder
	runs    *RunService
	metrics runObserver
	logger  *zap.Logger
}

// NewRunWorker constructs a worker.
func NewRunWorker(repo runStore, builder scheduleBuilder, runs *RunService, metrics runObserver, logger *zap.Logger) *RunWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunWorker{repo: repo, builder: builder, runs: runs, metrics: metrics, logger: logger}
}

// Handle executes one sync run to completion.
func (w *RunWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(runPayload)
	if !ok {
		return fmt.Errorf("job %s carries no run payload", job.ID)
	}

	loc, err := time.LoadLocation(payload.Timezone)
	if err != nil {
		return w.fail(ctx, job.ID, time.Time{}, fmt.Errorf("load timezone %q: %w", payload.Timezone, err))
	}

	started := time.Now().UTC()
	processing := models.RunStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateRunParams{Status: &processing, StartedAt: &started}); err != nil {
		return err
	}

	sink := ProgressFunc(func(completed, total int) {
		percent := 0
		if total > 0 {
			percent = completed * 100 / total
		}
		if err := w.repo.Update(ctx, job.ID, repository.UpdateRunParams{
			Completed: &completed,
			Total:     &total,
			Progress:  &percent,
		}); err != nil {
			w.logger.Sugar().Warnw("failed to record progress", "run_id", job.ID, "error", err)
		}
		w.logger.Sugar().Debugw("course synced", "run_id", job.ID, "completed", completed, "total", total)
	})

	result, err := w.builder.Build(ctx, payload.Token, loc, sink)
	if err != nil {
		return w.fail(ctx, job.ID, started, err)
	}

	w.runs.registry.Put(job.ID, result.Schedule)

	finished := models.RunStatusFinished
	now := time.Now().UTC()
	percent := 100
	stats := result.Stats
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateRunParams{
		Status:          &finished,
		Progress:        &percent,
		CourseCount:     &stats.Courses,
		AssignmentCount: &stats.Assignments,
		UpcomingCount:   &stats.Upcoming,
		UndatedCount:    &stats.Undated,
		DiscardedCount:  &stats.Discarded,
		ErrorMessage:    &clear,
		FinishedAt:      &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark run finished", "run_id", job.ID, "error", err)
		return err
	}
	if w.metrics != nil {
		w.metrics.ObserveRun(string(finished), now.Sub(started))
	}
	w.logger.Sugar().Infow("run finished",
		"run_id", job.ID,
		"courses", stats.Courses,
		"assignments", stats.Assignments,
		"upcoming", stats.Upcoming,
		"undated", stats.Undated)
	return nil
}

// fail records a terminal failure. Progress already written stands.
func (w *RunWorker) fail(ctx context.Context, runID string, started time.Time, cause error) error {
	failed := models.RunStatusFailed
	msg := appErrors.FromError(cause).Message
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, runID, repository.UpdateRunParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark run failed", "run_id", runID, "error", err)
	}
	if w.metrics != nil && !started.IsZero() {
		w.metrics.ObserveRun(string(failed), now.Sub(started))
	}
	return cause
}
