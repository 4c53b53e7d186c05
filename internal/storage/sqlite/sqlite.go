// Package sqlite implements the storage port over an embedded SQLite
// database, for single-box deployments with no database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// Adapter persists students and attendance in a SQLite file.
type Adapter struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs the
// schema migration. Foreign keys are switched on for the cascade delete.
func Open(path string) (*Adapter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Adapter{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		course     TEXT NOT NULL,
		roll       TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		photo      TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id            TEXT PRIMARY KEY,
		student_id    TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		date          TEXT NOT NULL,
		time          TEXT NOT NULL,
		full_datetime TEXT NOT NULL,
		timestamp     INTEGER NOT NULL,
		UNIQUE (student_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);
	`
	_, err := db.Exec(schema)
	return err
}

func (a *Adapter) InsertStudent(ctx context.Context, st model.Student) error {
	res, err := a.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO students (id, name, course, roll, phone, email, photo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Course, st.Roll, st.Phone, st.Email, st.Photo, st.CreatedAt)
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

func (a *Adapter) FindStudent(ctx context.Context, id string) (*model.Student, error) {
	var st model.Student
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, course, roll, phone, email, photo, created_at
		FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.Course, &st.Roll, &st.Phone, &st.Email, &st.Photo, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &st, nil
}

func (a *Adapter) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, course, roll, phone, email, photo, created_at
		FROM students ORDER BY name`)
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

func (a *Adapter) DeleteStudentCascade(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
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

func (a *Adapter) InsertAttendanceIfAbsent(ctx context.Context, rec model.AttendanceRecord) (bool, *model.AttendanceRecord, error) {
	res, err := a.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO attendance (id, student_id, date, time, full_datetime, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StudentID, rec.Date, rec.Time, rec.FullDateTime, rec.Timestamp)
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

	var existing model.AttendanceRecord
	err = a.db.QueryRowContext(ctx, `
		SELECT a.id, a.student_id, s.name, s.course, a.date, a.time, a.full_datetime, a.timestamp
		FROM attendance a JOIN students s ON s.id = a.student_id
		WHERE a.student_id = ? AND a.date = ?`,
		rec.StudentID, rec.Date,
	).Scan(&existing.ID, &existing.StudentID, &existing.Name, &existing.Course,
		&existing.Date, &existing.Time, &existing.FullDateTime, &existing.Timestamp)
	if err != nil {
		return false, nil, fmt.Errorf("fetch existing attendance: %w", err)
	}
	return false, &existing, nil
}

func (a *Adapter) QueryAttendance(ctx context.Context, f storage.Filter) ([]model.AttendanceRecord, error) {
	query := `
		SELECT a.id, a.student_id, s.name, s.course, a.date, a.time, a.full_datetime, a.timestamp
		FROM attendance a JOIN students s ON s.id = a.student_id`
	var args []any
	var clauses []string
	if f.Date != "" {
		clauses = append(clauses, "a.date = ?")
		args = append(args, f.Date)
	}
	if f.StudentID != "" {
		clauses = append(clauses, "a.student_id = ?")
		args = append(args, f.StudentID)
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

func (a *Adapter) CountAttendance(ctx context.Context, studentID string) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE student_id = ?`, studentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) Close() error { return a.db.Close() }
