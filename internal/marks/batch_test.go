package marks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/satresults/internal/grading"
)

const (
	subjectA = "64b7f0c2a1b2c3d4e5f60718"
	subjectB = "64b7f0c2a1b2c3d4e5f60719"
)

func TestIsObjectID(t *testing.T) {
	assert.True(t, IsObjectID(subjectA))
	assert.True(t, IsObjectID("64B7F0C2A1B2C3D4E5F60718"))
	assert.False(t, IsObjectID("abc"))
	assert.False(t, IsObjectID(subjectA+"0"))
	assert.False(t, IsObjectID("64b7f0c2a1b2c3d4e5f6071z"))
	assert.False(t, IsObjectID(""))
}

func TestMatchPattern(t *testing.T) {
	p, err := MatchPattern(`^SUB-[0-9]{3}$`)
	require.NoError(t, err)
	assert.True(t, p("SUB-101"))
	assert.False(t, p("SUB-1"))

	_, err = MatchPattern(`(`)
	assert.Error(t, err)
}

func TestSave_AllInvalidSubjects(t *testing.T) {
	store := NewMemoryStore()
	s := NewSaver(store, IsObjectID, nil)

	rep, err := s.Save(context.Background(), []Entry{
		{StudentID: "s1", SubjectID: "abc", Component: ComponentInternal, Value: 50},
		{StudentID: "s2", SubjectID: "not-an-id", Component: ComponentInternal, Value: 60},
	})

	var eb *EmptyBatchError
	require.True(t, errors.As(err, &eb))
	assert.Equal(t, 2, eb.Received)
	require.Len(t, eb.Skipped, 2)
	assert.Equal(t, ReasonBadSubjectRef, eb.Skipped[0].Reason)
	assert.Equal(t, 0, rep.Saved)

	all, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, all, "nothing persisted")
}

func TestSave_PartialBatch(t *testing.T) {
	store := NewMemoryStore()
	s := NewSaver(store, IsObjectID, nil)

	rep, err := s.Save(context.Background(), []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 120},
		{StudentID: "s2", SubjectID: "abc", Component: ComponentInternal, Value: 60},
		{StudentID: "", SubjectID: subjectA, Component: ComponentInternal, Value: 60},
		{StudentID: "s3", SubjectID: subjectA, Component: "bonus", Value: 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Received)
	assert.Equal(t, 1, rep.Saved)
	require.Len(t, rep.Skipped, 3)
	assert.Equal(t, Skip{Index: 1, StudentID: "s2", SubjectID: "abc", Component: ComponentInternal, Reason: ReasonBadSubjectRef}, rep.Skipped[0])
	assert.Equal(t, ReasonNoStudent, rep.Skipped[1].Reason)
	assert.Equal(t, ReasonBadComponent, rep.Skipped[2].Reason)

	e, err := store.Get(context.Background(), Key{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal})
	require.NoError(t, err)
	assert.Equal(t, 100.0, e.Value, "clamped before storing")
}

func TestSave_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSaver(store, IsObjectID, nil)
	batch := []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 45},
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentExternal, Value: 70},
	}

	_, err := s.Save(ctx, batch)
	require.NoError(t, err)
	first, err := store.List(ctx, Filter{SubjectID: subjectA})
	require.NoError(t, err)

	_, err = s.Save(ctx, batch)
	require.NoError(t, err)
	second, err := store.List(ctx, Filter{SubjectID: subjectA})
	require.NoError(t, err)

	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].Value, second[i].Value)
	}
}

func TestSave_DuplicateKeyLastWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSaver(store, nil, nil)

	rep, err := s.Save(ctx, []Entry{
		{StudentID: "s1", SubjectID: "any", Component: ComponentExternal, Value: 10},
		{StudentID: "s1", SubjectID: "any", Component: ComponentExternal, Value: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Saved)

	e, err := store.Get(ctx, Key{StudentID: "s1", SubjectID: "any", Component: ComponentExternal})
	require.NoError(t, err)
	assert.Equal(t, 20.0, e.Value)
}

func TestSave_Assignments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSaver(store, IsObjectID, nil)

	_, err := s.Save(ctx, []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentAssignments, Values: []float64{80, 90, 120}},
	})
	require.NoError(t, err)

	e, err := store.Get(ctx, Key{StudentID: "s1", SubjectID: subjectA, Component: ComponentAssignments})
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 90, 100}, e.Values)
	assert.Equal(t, 90.0, e.Value)
}

func TestSave_FinalGetsGrade(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSaver(store, IsObjectID, grading.TenPoint)

	_, err := s.Save(ctx, []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentFinal, Value: 91, Grade: "F"},
	})
	require.NoError(t, err)
	e, err := store.Get(ctx, Key{StudentID: "s1", SubjectID: subjectA, Component: ComponentFinal})
	require.NoError(t, err)
	assert.Equal(t, grading.Grade("O"), e.Grade, "client grades are ignored")
}

func TestSave_SubmittedIsLocked(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSaver(store, IsObjectID, nil)

	_, err := s.Save(ctx, []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 40},
		{StudentID: "s1", SubjectID: subjectB, Component: ComponentInternal, Value: 40},
	})
	require.NoError(t, err)

	n, err := store.Submit(ctx, subjectA, ComponentInternal)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.Submit(ctx, subjectA, ComponentInternal)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already submitted")

	_, err = s.Save(ctx, []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 99},
	})
	var eb *EmptyBatchError
	require.True(t, errors.As(err, &eb))
	require.Len(t, eb.Skipped, 1)
	assert.Equal(t, ReasonSubmitted, eb.Skipped[0].Reason)

	rep, err := s.Save(ctx, []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 99},
		{StudentID: "s1", SubjectID: subjectB, Component: ComponentInternal, Value: 99},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Saved)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, 0, rep.Skipped[0].Index)

	e, err := store.Get(ctx, Key{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal})
	require.NoError(t, err)
	assert.Equal(t, 40.0, e.Value)
	assert.True(t, e.Submitted)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), Key{StudentID: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}
