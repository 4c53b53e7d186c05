// Package directory owns student profile records.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rollcall/internal/model"
	"rollcall/internal/storage"
)

// RosterCache is notified when the roster changes, so cached per-day
// summaries built against the old roster size are dropped.
type RosterCache interface {
	InvalidateAll(ctx context.Context)
}

// Service implements student registration, lookup and removal over the
// storage port.
type Service struct {
	store storage.Port
	cache RosterCache // optional
}

// NewService creates a directory. cache may be nil.
func NewService(store storage.Port, cache RosterCache) *Service {
	return &Service{store: store, cache: cache}
}

// Register persists a new student. The identifier is caller-supplied;
// when empty it falls back to the roll number. Display initials are
// derived from the name when not provided. Returns
// storage.ErrDuplicateStudent if the identifier already exists.
func (s *Service) Register(ctx context.Context, st model.Student) (model.Student, error) {
	if st.ID == "" {
		st.ID = st.Roll
	}
	if st.ID == "" {
		return model.Student{}, errors.New("student id or roll required")
	}
	if st.Name == "" {
		return model.Student{}, errors.New("student name required")
	}
	if st.Photo == "" {
		st.Photo = Initials(st.Name)
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	if err := s.store.InsertStudent(ctx, st); err != nil {
		return model.Student{}, err
	}
	s.invalidate(ctx)
	return st, nil
}

// Get returns one student, or storage.ErrStudentNotFound.
func (s *Service) Get(ctx context.Context, id string) (*model.Student, error) {
	return s.store.FindStudent(ctx, id)
}

// List returns every student sorted by name ascending.
func (s *Service) List(ctx context.Context) ([]model.Student, error) {
	return s.store.ListStudents(ctx)
}

// Remove deletes a student and, atomically, every attendance record
// referencing it. Returns storage.ErrStudentNotFound on a miss.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.DeleteStudentCascade(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
}

// Initials derives display initials from a full name: first letter of
// each word, uppercased.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		b.WriteString(strings.ToUpper(word[:1]))
	}
	return b.String()
}

// defaultStudents is the demo roster seeded into fresh installs.
var defaultStudents = []model.Student{
	{ID: "STU001", Name: "Mayank Kushwaha", Course: "BCA 3rd Year", Roll: "001", Phone: "9876543210", Email: "mayank@example.com", Photo: "MK"},
	{ID: "STU002", Name: "Rahul Sharma", Course: "BCA 2nd Year", Roll: "002", Phone: "9876543211", Email: "rahul@example.com", Photo: "RS"},
	{ID: "STU003", Name: "Priya Singh", Course: "BCA 1st Year", Roll: "003", Phone: "9876543212", Email: "priya@example.com", Photo: "PS"},
	{ID: "STU004", Name: "Amit Kumar", Course: "BCA 3rd Year", Roll: "004", Phone: "9876543213", Email: "amit@example.com", Photo: "AK"},
	{ID: "STU005", Name: "Sneha Patel", Course: "BCA 2nd Year", Roll: "005", Phone: "9876543214", Email: "sneha@example.com", Photo: "SP"},
}

// SeedDefaults inserts the demo roster, skipping students that already
// exist. Used behind a config flag for fresh installs.
func (s *Service) SeedDefaults(ctx context.Context) error {
	for _, st := range defaultStudents {
		_, err := s.Register(ctx, st)
		if errors.Is(err, storage.ErrDuplicateStudent) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", st.ID, err)
		}
		log.Printf("seeded student %s (%s)", st.ID, st.Name)
	}
	return nil
}
