package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/model"
	"rollcall/internal/storage"
	"rollcall/internal/storage/memory"
)

func TestRegisterDerivesDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	st, err := svc.Register(ctx, model.Student{
		Name:   "Sneha Patel",
		Course: "BCA 2nd Year",
		Roll:   "STU005",
	})
	require.NoError(t, err)
	assert.Equal(t, "STU005", st.ID, "id falls back to roll")
	assert.Equal(t, "SP", st.Photo, "initials derived from name")
	assert.False(t, st.CreatedAt.IsZero())
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	_, err := svc.Register(ctx, model.Student{Name: "No Identifier"})
	require.Error(t, err)

	_, err = svc.Register(ctx, model.Student{ID: "STU001"})
	require.Error(t, err)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	_, err := svc.Register(ctx, model.Student{ID: "STU006", Name: "X Y", Course: "BCA 1st Year", Roll: "006"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, model.Student{ID: "STU006", Name: "Other Person", Course: "BCA 1st Year", Roll: "007"})
	require.ErrorIs(t, err, storage.ErrDuplicateStudent)

	// directory unchanged by the failed registration
	students, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "X Y", students[0].Name)
}

func TestRemoveThenGetNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	_, err := svc.Register(ctx, model.Student{ID: "STU006", Name: "X Y", Course: "BCA 1st Year", Roll: "006"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "STU006"))
	_, err = svc.Get(ctx, "STU006")
	require.ErrorIs(t, err, storage.ErrStudentNotFound)

	require.ErrorIs(t, svc.Remove(ctx, "STU006"), storage.ErrStudentNotFound)
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	require.NoError(t, svc.SeedDefaults(ctx))
	require.NoError(t, svc.SeedDefaults(ctx))

	students, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 5)
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Mayank Kushwaha", "MK"},
		{"priya singh", "PS"},
		{"Cher", "C"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Initials(tc.name), tc.name)
	}
}
