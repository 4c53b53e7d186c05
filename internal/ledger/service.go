// Package ledger enforces the one-mark-per-student-per-day rule and
// answers attendance queries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rollcall/internal/directory"
	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// ErrUnknownStudent is returned when marking attendance for an
// identifier the directory does not know.
var ErrUnknownStudent = errors.New("unknown student")

var markOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_marks_total",
	Help: "Attendance mark attempts by outcome.",
}, []string{"result"})

// SummaryCache is an optional read-through cache for per-day dashboard
// summaries, invalidated on every mark.
type SummaryCache interface {
	Get(ctx context.Context, date string) (model.DashboardSummary, bool)
	Set(ctx context.Context, date string, sum model.DashboardSummary)
	Invalidate(ctx context.Context, date string)
}

// MarkResult is the outcome of a mark attempt. Already distinguishes the
// expected "already marked today" outcome from a fresh mark; Record is
// the new event, or the existing one when Already is set.
type MarkResult struct {
	Already bool
	Record  model.AttendanceRecord
}

// Service coordinates attendance marks and queries. The calendar day is
// always derived server-side in loc, never from the client's clock.
type Service struct {
	store storage.Port
	dir   *directory.Service
	cache SummaryCache // optional
	loc   *time.Location
	now   func() time.Time
}

// NewService creates a ledger. cache may be nil; loc defaults to the
// server's local zone.
func NewService(store storage.Port, dir *directory.Service, cache SummaryCache, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, dir: dir, cache: cache, loc: loc, now: time.Now}
}

// Today returns the current calendar date in the ledger's zone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

// Mark records attendance for studentID at occurredAt (zero means now).
// The student must exist in the directory. The insert is a single
// constrained write: concurrent marks for the same (student, day) pair
// resolve to exactly one record, and the losers get that record back in
// an Already result.
func (s *Service) Mark(ctx context.Context, studentID string, occurredAt time.Time) (MarkResult, error) {
	if studentID == "" {
		return MarkResult{}, ErrUnknownStudent
	}
	if _, err := s.dir.Get(ctx, studentID); err != nil {
		if errors.Is(err, storage.ErrStudentNotFound) {
			markOutcomes.WithLabelValues("unknown_student").Inc()
			return MarkResult{}, ErrUnknownStudent
		}
		return MarkResult{}, fmt.Errorf("resolve student: %w", err)
	}

	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	local := occurredAt.In(s.loc)
	rec := model.AttendanceRecord{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Date:         local.Format(model.DateLayout),
		Time:         local.Format(model.TimeLayout),
		FullDateTime: local.Format(model.DateTimeLayout),
		Timestamp:    occurredAt.UnixMilli(),
	}

	inserted, existing, err := s.store.InsertAttendanceIfAbsent(ctx, rec)
	if err != nil {
		return MarkResult{}, err
	}
	if !inserted {
		markOutcomes.WithLabelValues("already_marked").Inc()
		return MarkResult{Already: true, Record: *existing}, nil
	}
	markOutcomes.WithLabelValues("marked").Inc()
	if s.cache != nil {
		s.cache.Invalidate(ctx, rec.Date)
	}
	return MarkResult{Record: rec}, nil
}

// RecordsForDay returns the day's records, most recent first, each
// carrying the student's current name and course.
func (s *Service) RecordsForDay(ctx context.Context, date string) ([]model.AttendanceRecord, error) {
	return s.store.QueryAttendance(ctx, storage.Filter{Date: date})
}

// AllRecords returns every record, most recent first, join-enriched.
func (s *Service) AllRecords(ctx context.Context) ([]model.AttendanceRecord, error) {
	return s.store.QueryAttendance(ctx, storage.Filter{})
}

// CountForStudent returns the total historical marks for one student.
func (s *Service) CountForStudent(ctx context.Context, studentID string) (int, error) {
	return s.store.CountAttendance(ctx, studentID)
}

// DashboardSummary computes the day's stats against the directory size
// at call time. Storage failures surface as errors, never as a zeroed
// summary.
func (s *Service) DashboardSummary(ctx context.Context, date string) (model.DashboardSummary, error) {
	if s.cache != nil {
		if sum, ok := s.cache.Get(ctx, date); ok {
			return sum, nil
		}
	}

	students, err := s.dir.List(ctx)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("dashboard roster: %w", err)
	}
	records, err := s.store.QueryAttendance(ctx, storage.Filter{Date: date})
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("dashboard records: %w", err)
	}

	sum := model.DashboardSummary{
		Date:    date,
		Total:   len(students),
		Present: len(records),
		Absent:  len(students) - len(records),
	}
	if sum.Total > 0 {
		sum.Rate = int(math.Round(100 * float64(sum.Present) / float64(sum.Total)))
	}
	if s.cache != nil {
		s.cache.Set(ctx, date, sum)
	}
	return sum, nil
}
