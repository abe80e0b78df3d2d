package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahmanfadhil/deadline-radar/internal/dto"
	"github.com/rahmanfadhil/deadline-radar/internal/models"
	"github.com/rahmanfadhil/deadline-radar/internal/repository"
	appErrors "github.com/rahmanfadhil/deadline-radar/pkg/errors"
	"github.com/rahmanfadhil/deadline-radar/pkg/jobs"
)

type runStoreMock struct {
	runs    map[string]*models.SyncRun
	updates []repository.UpdateRunParams
	listFn  func(ctx context.Context, limit int) ([]models.SyncRun, error)
}

func newRunStoreMock() *runStoreMock {
	return &runStoreMock{runs: make(map[string]*models.SyncRun)}
}

func (m *runStoreMock) Create(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *runStoreMock) GetByID(ctx context.Context, id string) (*models.SyncRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *run
	return &copied, nil
}

func (m *runStoreMock) Update(ctx context.Context, id string, params repository.UpdateRunParams) error {
	m.updates = append(m.updates, params)
	run, ok := m.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.Completed != nil {
		run.Completed = *params.Completed
	}
	if params.Total != nil {
		run.Total = *params.Total
	}
	if params.Progress != nil {
		run.Progress = *params.Progress
	}
	if params.CourseCount != nil {
		run.CourseCount = *params.CourseCount
	}
	if params.AssignmentCount != nil {
		run.AssignmentCount = *params.AssignmentCount
	}
	if params.UpcomingCount != nil {
		run.UpcomingCount = *params.UpcomingCount
	}
	if params.UndatedCount != nil {
		run.UndatedCount = *params.UndatedCount
	}
	if params.DiscardedCount != nil {
		run.DiscardedCount = *params.DiscardedCount
	}
	if params.ErrorMessage != nil {
		run.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		run.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		run.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *runStoreMock) List(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	out := make([]models.SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (m *runStoreMock) FailInterrupted(ctx context.Context, message string) (int64, error) {
	var count int64
	for _, run := range m.runs {
		if run.Status == models.RunStatusQueued || run.Status == models.RunStatusProcessing {
			run.Status = models.RunStatusFailed
			msg := message
			run.ErrorMessage = &msg
			count++
		}
	}
	return count, nil
}

type queueMock struct {
	jobs []jobs.Job
	err  error
}

func (m *queueMock) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type builderMock struct {
	buildFn func(ctx context.Context, token string, loc *time.Location, sink ProgressSink) (*BuildResult, error)
}

func (m *builderMock) Build(ctx context.Context, token string, loc *time.Location, sink ProgressSink) (*BuildResult, error) {
	return m.buildFn(ctx, token, loc, sink)
}

func newTestRunService(store runStore, queue jobDispatcher) *RunService {
	return NewRunService(store, queue, nil, zap.NewNop(), RunServiceConfig{
		DefaultTimezone: "UTC",
		HistoryLimit:    20,
		ResultTTL:       time.Hour,
	})
}

func TestRunServiceCreate(t *testing.T) {
	store := newRunStoreMock()
	queue := &queueMock{}
	svc := newTestRunService(store, queue)

	resp, err := svc.Create(context.Background(), "sekrit", dto.CreateRunRequest{Timezone: "America/Vancouver"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, models.RunStatusQueued, resp.Status)
	assert.Equal(t, "America/Vancouver", resp.Timezone)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].ID)
	assert.Equal(t, "schedule_sync", queue.jobs[0].Type)

	payload, ok := queue.jobs[0].Payload.(runPayload)
	require.True(t, ok)
	assert.Equal(t, "sekrit", payload.Token)
	assert.Equal(t, "America/Vancouver", payload.Timezone)

	stored, err := store.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, stored.Status)
}

func TestRunServiceCreateMissingToken(t *testing.T) {
	svc := newTestRunService(newRunStoreMock(), &queueMock{})

	_, err := svc.Create(context.Background(), "   ", dto.CreateRunRequest{})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
}

func TestRunServiceCreateUnknownTimezone(t *testing.T) {
	svc := newTestRunService(newRunStoreMock(), &queueMock{})

	_, err := svc.Create(context.Background(), "sekrit", dto.CreateRunRequest{Timezone: "Mars/Olympus"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestRunServiceCreateEnqueueFailure(t *testing.T) {
	store := newRunStoreMock()
	queue := &queueMock{err: errors.New("queue full")}
	svc := newTestRunService(store, queue)

	_, err := svc.Create(context.Background(), "sekrit", dto.CreateRunRequest{})
	require.Error(t, err)

	require.Len(t, store.runs, 1)
	for _, run := range store.runs {
		assert.Equal(t, models.RunStatusFailed, run.Status)
		require.NotNil(t, run.ErrorMessage)
	}
}

func TestRunServiceListClampsLimit(t *testing.T) {
	store := newRunStoreMock()
	var seen []int
	store.listFn = func(ctx context.Context, limit int) ([]models.SyncRun, error) {
		seen = append(seen, limit)
		return nil, nil
	}
	svc := newTestRunService(store, &queueMock{})

	for _, limit := range []int{0, 5, 100} {
		_, err := svc.List(context.Background(), limit)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{20, 5, 20}, seen)
}

func TestRunServiceGetNotFound(t *testing.T) {
	svc := newTestRunService(newRunStoreMock(), &queueMock{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestRunServiceSchedule(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	msg := "upstream exploded"
	now := time.Now().UTC()
	store.runs["queued"] = &models.SyncRun{ID: "queued", Status: models.RunStatusQueued, CreatedAt: now}
	store.runs["working"] = &models.SyncRun{ID: "working", Status: models.RunStatusProcessing, CreatedAt: now}
	store.runs["failed"] = &models.SyncRun{ID: "failed", Status: models.RunStatusFailed, ErrorMessage: &msg, CreatedAt: now}
	store.runs["done"] = &models.SyncRun{ID: "done", Status: models.RunStatusFinished, CreatedAt: now}
	store.runs["evicted"] = &models.SyncRun{ID: "evicted", Status: models.RunStatusFinished, CreatedAt: now}

	svc.registry.Put("done", models.NewWeekSchedule("UTC", now))

	for _, id := range []string{"queued", "working"} {
		_, err := svc.Schedule(context.Background(), id)
		require.Error(t, err, id)
		assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code, id)
	}

	_, err := svc.Schedule(context.Background(), "failed")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "upstream exploded")

	schedule, err := svc.Schedule(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, "UTC", schedule.Timezone)

	_, err = svc.Schedule(context.Background(), "evicted")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestRunServiceExportCSV(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	now := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	store.runs["done"] = &models.SyncRun{ID: "done", Status: models.RunStatusFinished, CreatedAt: now}

	schedule := models.NewWeekSchedule("UTC", now)
	schedule.Add("Thursday", models.ScheduledAssignment{
		Course:   "Calc",
		Name:     "HW1",
		DueLabel: "2024-03-07 23:59 UTC",
		DaysLeft: 3, HoursLeft: 23,
	})
	schedule.NoDueDate = append(schedule.NoDueDate, models.UndatedAssignment{Course: "Calc", Name: "HW2"})
	svc.registry.Put("done", schedule)

	result, err := svc.Export(context.Background(), "done", "csv")
	require.NoError(t, err)

	assert.Equal(t, "week-schedule-done.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Course,Assignment,Due,Days Left,Hours Left", lines[0])
	assert.Contains(t, lines[1], "Thursday,Calc,HW1")
	assert.Contains(t, lines[2], "No Due Date,Calc,HW2")
}

func TestRunServiceExportPDF(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	now := time.Now().UTC()
	store.runs["done"] = &models.SyncRun{ID: "done", Status: models.RunStatusFinished, CreatedAt: now}
	svc.registry.Put("done", models.NewWeekSchedule("UTC", now))

	result, err := svc.Export(context.Background(), "done", "pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestRunServiceExportUnknownFormat(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	now := time.Now().UTC()
	store.runs["done"] = &models.SyncRun{ID: "done", Status: models.RunStatusFinished, CreatedAt: now}
	svc.registry.Put("done", models.NewWeekSchedule("UTC", now))

	_, err := svc.Export(context.Background(), "done", "xlsx")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestRunWorkerHandle(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	now := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	store.runs["run-1"] = &models.SyncRun{ID: "run-1", Status: models.RunStatusQueued, Timezone: "UTC", CreatedAt: now}

	builder := &builderMock{
		buildFn: func(ctx context.Context, token string, loc *time.Location, sink ProgressSink) (*BuildResult, error) {
			assert.Equal(t, "sekrit", token)
			sink.Report(1, 2)
			sink.Report(2, 2)
			return &BuildResult{
				Identity: &models.Identity{ID: 7},
				Schedule: models.NewWeekSchedule(loc.String(), now),
				Stats:    models.SyncStats{Courses: 2, Assignments: 5, Upcoming: 3, Undated: 1, Discarded: 1},
			}, nil
		},
	}

	worker := NewRunWorker(store, builder, svc, nil, zap.NewNop())

	job := jobs.Job{ID: "run-1", Type: "schedule_sync", Payload: runPayload{Token: "sekrit", Timezone: "UTC"}}
	require.NoError(t, worker.Handle(context.Background(), job))

	run := store.runs["run-1"]
	assert.Equal(t, models.RunStatusFinished, run.Status)
	assert.Equal(t, 100, run.Progress)
	assert.Equal(t, 2, run.Completed)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 2, run.CourseCount)
	assert.Equal(t, 5, run.AssignmentCount)
	assert.Equal(t, 3, run.UpcomingCount)
	assert.Equal(t, 1, run.UndatedCount)
	assert.Equal(t, 1, run.DiscardedCount)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)

	schedule, err := svc.Schedule(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", schedule.Timezone)
}

func TestRunWorkerHandleBuildFailure(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	store.runs["run-1"] = &models.SyncRun{ID: "run-1", Status: models.RunStatusQueued, Timezone: "UTC", CreatedAt: time.Now().UTC()}

	builder := &builderMock{
		buildFn: func(ctx context.Context, token string, loc *time.Location, sink ProgressSink) (*BuildResult, error) {
			sink.Report(1, 3)
			return nil, appErrors.ErrUpstream
		},
	}

	worker := NewRunWorker(store, builder, svc, nil, zap.NewNop())

	job := jobs.Job{ID: "run-1", Type: "schedule_sync", Payload: runPayload{Token: "sekrit", Timezone: "UTC"}}
	err := worker.Handle(context.Background(), job)
	require.Error(t, err)

	run := store.runs["run-1"]
	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "learning platform")
	// Progress written before the failure stands.
	assert.Equal(t, 1, run.Completed)
	assert.Equal(t, 3, run.Total)

	_, err = svc.Schedule(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestRunWorkerHandleBadPayload(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})
	worker := NewRunWorker(store, &builderMock{}, svc, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "run-1", Type: "schedule_sync", Payload: "bogus"})
	require.Error(t, err)
}

func TestRunServiceRecoverInterrupted(t *testing.T) {
	store := newRunStoreMock()
	svc := newTestRunService(store, &queueMock{})

	now := time.Now().UTC()
	store.runs["stuck"] = &models.SyncRun{ID: "stuck", Status: models.RunStatusProcessing, CreatedAt: now}
	store.runs["done"] = &models.SyncRun{ID: "done", Status: models.RunStatusFinished, CreatedAt: now}

	svc.RecoverInterrupted(context.Background())

	assert.Equal(t, models.RunStatusFailed, store.runs["stuck"].Status)
	assert.Equal(t, models.RunStatusFinished, store.runs["done"].Status)
}
