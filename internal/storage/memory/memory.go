// Package memory implements the storage port with in-process maps. It
// backs local development and tests; the mutex gives it the same atomic
// conflict detection the SQL adapters get from their unique constraints.
package memory

import (
	"context"
	"sort"
	"sync"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// Adapter is a mutex-guarded map store.
type Adapter struct {
	mu         sync.Mutex
	students   map[string]model.Student
	attendance map[string]map[string]model.AttendanceRecord // studentID -> date -> record
}

// New creates an empty store.
func New() *Adapter {
	return &Adapter{
		students:   make(map[string]model.Student),
		attendance: make(map[string]map[string]model.AttendanceRecord),
	}
}

func (a *Adapter) InsertStudent(_ context.Context, st model.Student) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.students[st.ID]; ok {
		return storage.ErrDuplicateStudent
	}
	a.students[st.ID] = st
	return nil
}

func (a *Adapter) FindStudent(_ context.Context, id string) (*model.Student, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.students[id]
	if !ok {
		return nil, storage.ErrStudentNotFound
	}
	return &st, nil
}

func (a *Adapter) ListStudents(_ context.Context) ([]model.Student, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	students := make([]model.Student, 0, len(a.students))
	for _, st := range a.students {
		students = append(students, st)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (a *Adapter) DeleteStudentCascade(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.students[id]; !ok {
		return storage.ErrStudentNotFound
	}
	delete(a.students, id)
	delete(a.attendance, id)
	return nil
}

func (a *Adapter) InsertAttendanceIfAbsent(_ context.Context, rec model.AttendanceRecord) (bool, *model.AttendanceRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	days, ok := a.attendance[rec.StudentID]
	if !ok {
		days = make(map[string]model.AttendanceRecord)
		a.attendance[rec.StudentID] = days
	}
	if existing, ok := days[rec.Date]; ok {
		enriched := a.enrich(existing)
		return false, &enriched, nil
	}
	days[rec.Date] = rec
	return true, nil, nil
}

func (a *Adapter) QueryAttendance(_ context.Context, f storage.Filter) ([]model.AttendanceRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var records []model.AttendanceRecord
	for studentID, days := range a.attendance {
		if f.StudentID != "" && f.StudentID != studentID {
			continue
		}
		for date, rec := range days {
			if f.Date != "" && f.Date != date {
				continue
			}
			records = append(records, a.enrich(rec))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records, nil
}

func (a *Adapter) CountAttendance(_ context.Context, studentID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.attendance[studentID]), nil
}

// enrich joins the current student name and course onto a record.
// Callers must hold the mutex.
func (a *Adapter) enrich(rec model.AttendanceRecord) model.AttendanceRecord {
	if st, ok := a.students[rec.StudentID]; ok {
		rec.Name = st.Name
		rec.Course = st.Course
	}
	return rec
}

func (a *Adapter) Ping(_ context.Context) error { return nil }

func (a *Adapter) Close() error { return nil }
