package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahmanfadhil/deadline-radar/internal/canvas"
	"github.com/rahmanfadhil/deadline-radar/internal/models"
)

type canvasGateway interface {
	Me(ctx context.Context, token string) (*models.Identity, error)
	ActiveCourses(ctx context.Context, token string, userID int64) ([]models.Course, error)
	Assignments(ctx context.Context, token string, courseID int64) ([]models.Assignment, error)
}

// BuildResult bundles everything one aggregation run produced.
type BuildResult struct {
	Identity *models.Identity
	Schedule *models.WeekSchedule
	Stats    models.SyncStats
}

// ScheduleService runs the deadline aggregation pipeline: resolve the
// caller's identity, enumerate active courses, collect every course's
// assignments, then classify them into a weekday-bucketed schedule.
type ScheduleService struct {
	canvas canvasGateway
	logger *zap.Logger
	clock  func() time.Time
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(gateway canvasGateway, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{canvas: gateway, logger: logger, clock: time.Now}
}

// Build executes one full aggregation run. Network calls are strictly
// sequential, one course at a time in enumeration order; the sink gets
// exactly one tick per course once its assignments are merged. Identity
// or fetch failures halt the run; progress already reported stands.
func (s *ScheduleService) Build(ctx context.Context, token string, loc *time.Location, sink ProgressSink) (*BuildResult, error) {
	if loc == nil {
		loc = time.UTC
	}
	if sink == nil {
		sink = NopProgress
	}

	me, err := s.canvas.Me(ctx, token)
	if err != nil {
		return nil, err
	}
	s.logger.Info("authenticated", zap.Int64("user_id", me.ID), zap.String("name", me.Name))

	courses, err := s.canvas.ActiveCourses(ctx, token, me.ID)
	if err != nil {
		return nil, err
	}
	total := len(courses)
	s.logger.Info("active courses resolved", zap.Int("count", total))

	var merged []models.Assignment
	for i, course := range courses {
		assignments, err := s.canvas.Assignments(ctx, token, course.ID)
		if err != nil {
			return nil, err
		}
		name := course.DisplayName()
		for _, a := range assignments {
			a.Course = name
			merged = append(merged, a)
		}
		sink.Report(i+1, total)
	}

	// One capture instant drives both the upcoming/past cutoff and every
	// remaining-time delta, so the whole batch classifies consistently.
	now := s.clock().UTC()

	schedule, stats := s.classify(merged, now, loc)
	stats.Courses = total

	s.logger.Info("assignments classified",
		zap.Int("merged", stats.Assignments),
		zap.Int("upcoming", stats.Upcoming),
		zap.Int("undated", stats.Undated),
		zap.Int("discarded_past", stats.Discarded))

	return &BuildResult{Identity: me, Schedule: schedule, Stats: stats}, nil
}

type datedAssignment struct {
	assignment models.Assignment
	due        time.Time
}

func (s *ScheduleService) classify(merged []models.Assignment, now time.Time, loc *time.Location) (*models.WeekSchedule, models.SyncStats) {
	schedule := models.NewWeekSchedule(loc.String(), now)
	stats := models.SyncStats{Assignments: len(merged)}

	var upcoming []datedAssignment
	for _, a := range merged {
		if a.DueAt == nil || strings.TrimSpace(*a.DueAt) == "" {
			schedule.NoDueDate = append(schedule.NoDueDate, models.UndatedAssignment{Course: a.Course, Name: a.Name})
			stats.Undated++
			continue
		}
		due, err := canvas.ParseDueAt(*a.DueAt)
		if err != nil {
			// Fails open: a malformed due date demotes the record to the
			// sentinel bucket instead of aborting the run.
			s.logger.Warn("unparseable due date", zap.String("assignment", a.Name), zap.String("due_at", *a.DueAt))
			schedule.NoDueDate = append(schedule.NoDueDate, models.UndatedAssignment{Course: a.Course, Name: a.Name})
			stats.Undated++
			continue
		}
		if due.Before(now) {
			stats.Discarded++
			continue
		}
		upcoming = append(upcoming, datedAssignment{assignment: a, due: due})
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].due.Before(upcoming[j].due)
	})

	for _, item := range upcoming {
		dueLocal := item.due.In(loc)
		delta := item.due.Sub(now)
		schedule.Add(dueLocal.Weekday().String(), models.ScheduledAssignment{
			Course:    item.assignment.Course,
			Name:      item.assignment.Name,
			DueAt:     dueLocal,
			DueLabel:  dueLocal.Format("2006-01-02 15:04 MST"),
			DaysLeft:  int(delta / (24 * time.Hour)),
			HoursLeft: int((delta % (24 * time.Hour)) / time.Hour),
		})
		stats.Upcoming++
	}

	return schedule, stats
}
