// Package postgres implements the storage port over a Postgres server
// using database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// Adapter persists students and attendance in Postgres.
type Adapter struct {
	db *sql.DB
}

// New wraps an open connection pool.
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// Migrate creates the two tables if they do not exist. The UNIQUE key on
// (student_id, date) is what makes mark-once-per-day atomic; the foreign
// key carries the cascade on student deletion.
func (a *Adapter) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		course     TEXT NOT NULL,
		roll       TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		photo      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id            TEXT PRIMARY KEY,
		student_id    TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		date          TEXT NOT NULL,
		time          TEXT NOT NULL,
		full_datetime TEXT NOT NULL,
		timestamp     BIGINT NOT NULL,
		UNIQUE (student_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);
	`
	_, err := a.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InsertStudent creates a student record, failing on an existing id.
func (a *Adapter) InsertStudent(ctx context.Context, st model.Student) error {
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO students (id, name, course, roll, phone, email, photo, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, st.ID, st.Name, st.Course, st.Roll, st.Phone, st.Email, st.Photo, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicateStudent
	}
	return nil
}

// FindStudent returns a single student by id.
func (a *Adapter) FindStudent(ctx context.Context, id string) (*model.Student, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, name, course, roll, phone, email, photo, created_at
		FROM students WHERE id = $1
	`, id)
	var st model.Student
	if err := row.Scan(&st.ID, &st.Name, &st.Course, &st.Roll, &st.Phone, &st.Email, &st.Photo, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrStudentNotFound
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &st, nil
}

// ListStudents returns all students ordered by display name.
func (a *Adapter) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, course, roll, phone, email, photo, created_at
		FROM students
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Course, &st.Roll, &st.Phone, &st.Email, &st.Photo, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// DeleteStudentCascade removes a student. The ON DELETE CASCADE foreign
// key removes the attendance rows in the same statement, so the delete
// is atomic without an explicit transaction.
func (a *Adapter) DeleteStudentCascade(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n == 0 {
		return storage.ErrStudentNotFound
	}
	return nil
}

// InsertAttendanceIfAbsent writes a record keyed on (student_id, date).
// The unique constraint arbitrates concurrent marks; on conflict the
// existing row is fetched and returned.
func (a *Adapter) InsertAttendanceIfAbsent(ctx context.Context, rec model.AttendanceRecord) (bool, *model.AttendanceRecord, error) {
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO attendance (id, student_id, date, time, full_datetime, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (student_id, date) DO NOTHING
	`, rec.ID, rec.StudentID, rec.Date, rec.Time, rec.FullDateTime, rec.Timestamp)
	if err != nil {
		return false, nil, fmt.Errorf("insert attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("insert attendance: %w", err)
	}
	if n == 1 {
		return true, nil, nil
	}

	row := a.db.QueryRowContext(ctx, `
		SELECT a.id, a.student_id, s.name, s.course, a.date, a.time, a.full_datetime, a.timestamp
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE a.student_id = $1 AND a.date = $2
	`, rec.StudentID, rec.Date)
	var existing model.AttendanceRecord
	if err := row.Scan(&existing.ID, &existing.StudentID, &existing.Name, &existing.Course,
		&existing.Date, &existing.Time, &existing.FullDateTime, &existing.Timestamp); err != nil {
		return false, nil, fmt.Errorf("fetch existing attendance: %w", err)
	}
	return false, &existing, nil
}

// QueryAttendance returns records joined with the current student
// profile, most recent first.
func (a *Adapter) QueryAttendance(ctx context.Context, f storage.Filter) ([]model.AttendanceRecord, error) {
	query := `
		SELECT a.id, a.student_id, s.name, s.course, a.date, a.time, a.full_datetime, a.timestamp
		FROM attendance a
		JOIN students s ON s.id = a.student_id`
	var args []any
	var clauses []string
	if f.Date != "" {
		args = append(args, f.Date)
		clauses = append(clauses, fmt.Sprintf("a.date = $%d", len(args)))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, fmt.Sprintf("a.student_id = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.timestamp DESC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Name, &rec.Course,
			&rec.Date, &rec.Time, &rec.FullDateTime, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("query attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountAttendance returns the total historical marks for one student.
func (a *Adapter) CountAttendance(ctx context.Context, studentID string) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE student_id = $1`, studentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// Ping verifies connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}
