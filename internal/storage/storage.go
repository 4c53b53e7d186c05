// Package storage defines the persistence port shared by the student
// directory and the attendance ledger. Adapters exist for Postgres,
// SQLite and an in-process map store; all three must implement
// InsertAttendanceIfAbsent as a single atomic operation.
package storage

import (
	"context"
	"errors"

	"rollcall/internal/model"
)

var (
	// ErrDuplicateStudent is returned when registering an identifier
	// that already exists.
	ErrDuplicateStudent = errors.New("student already exists")

	// ErrStudentNotFound is returned by lookups and deletes that miss.
	ErrStudentNotFound = errors.New("student not found")
)

// Filter narrows attendance queries. Zero values mean no constraint.
type Filter struct {
	Date      string // calendar day, model.DateLayout
	StudentID string
}

// Port is the persistence capability required by the directory and the
// ledger. Query results come back enriched with the student's current
// name and course and sorted by timestamp descending.
type Port interface {
	InsertStudent(ctx context.Context, st model.Student) error
	FindStudent(ctx context.Context, id string) (*model.Student, error)
	ListStudents(ctx context.Context) ([]model.Student, error)

	// DeleteStudentCascade removes the student and every attendance
	// record referencing it, atomically. A partial delete must not
	// report success.
	DeleteStudentCascade(ctx context.Context, id string) error

	// InsertAttendanceIfAbsent inserts rec keyed on (StudentID, Date).
	// On conflict it reports inserted=false and returns the existing
	// record. Concurrent calls for the same pair must result in exactly
	// one insert.
	InsertAttendanceIfAbsent(ctx context.Context, rec model.AttendanceRecord) (inserted bool, existing *model.AttendanceRecord, err error)

	QueryAttendance(ctx context.Context, f Filter) ([]model.AttendanceRecord, error)
	CountAttendance(ctx context.Context, studentID string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
