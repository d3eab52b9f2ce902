package marks

import (
	"context"
	"errors"

	"github.com/mind-engage/satresults/internal/grading"
)

// Component names one scored part of a (student, subject) pair.
type Component string

const (
	ComponentInternal    Component = "internal"
	ComponentExternal    Component = "external" // SAT / semester exam
	ComponentFAT1        Component = "fat1"
	ComponentFAT2        Component = "fat2"
	ComponentFAT3        Component = "fat3"
	ComponentAssignments Component = "assignments"
	ComponentFinal       Component = "final"
)

func (c Component) Valid() bool {
	switch c {
	case ComponentInternal, ComponentExternal, ComponentFAT1, ComponentFAT2, ComponentFAT3,
		ComponentAssignments, ComponentFinal:
		return true
	}
	return false
}

// Entry is one stored mark. Values is only set for assignments, where Value
// holds their mean.
type Entry struct {
	StudentID string        `json:"student_id"`
	SubjectID string        `json:"subject_id"`
	Component Component     `json:"component"`
	Value     float64       `json:"value"`
	Values    []float64     `json:"values,omitempty"`
	Grade     grading.Grade `json:"grade,omitempty"`
	Submitted bool          `json:"submitted"`
	UpdatedAt int64         `json:"updated_at,omitempty"`
}

// Key identifies an entry; saving the same key twice overwrites.
type Key struct {
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id"`
	Component Component `json:"component"`
}

func (e Entry) Key() Key { return Key{StudentID: e.StudentID, SubjectID: e.SubjectID, Component: e.Component} }

type Filter struct {
	SubjectID string
	StudentID string
	Component Component
}

func (f Filter) match(e Entry) bool {
	return (f.SubjectID == "" || f.SubjectID == e.SubjectID) &&
		(f.StudentID == "" || f.StudentID == e.StudentID) &&
		(f.Component == "" || f.Component == e.Component)
}

// UpsertResult reports what a store wrote; Locked keys belong to submitted
// marks and were left untouched.
type UpsertResult struct {
	Saved  int
	Locked []Key
}

// ErrNotFound is returned by lookups for keys that were never saved.
var ErrNotFound = errors.New("marks: not found")

type Store interface {
	Get(ctx context.Context, k Key) (Entry, error)
	Upsert(ctx context.Context, entries []Entry) (UpsertResult, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	// Submit locks every entry of the subject's component; it returns how many
	// entries changed state.
	Submit(ctx context.Context, subjectID string, c Component) (int, error)
}

// Criteria names.
const (
	CriteriaFinal    = "final"
	CriteriaInternal = "internal"
)

type CriteriaStore interface {
	// GetCriteria returns DefaultCriteria when name was never saved.
	GetCriteria(ctx context.Context, name string) (Criteria, error)
	PutCriteria(ctx context.Context, name string, c Criteria) error
}
