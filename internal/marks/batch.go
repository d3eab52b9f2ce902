package marks

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mind-engage/satresults/internal/grading"
)

// SubjectRefPredicate is the caller's format check for subject references.
type SubjectRefPredicate func(ref string) bool

var objectIDRe = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsObjectID accepts 24 hex character ids.
func IsObjectID(ref string) bool { return objectIDRe.MatchString(ref) }

func AcceptAll(string) bool { return true }

// MatchPattern builds a predicate from a regular expression.
func MatchPattern(expr string) (SubjectRefPredicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}

// Skip explains why one tuple of a batch was not saved.
type Skip struct {
	Index     int       `json:"index"`
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id"`
	Component Component `json:"component"`
	Reason    string    `json:"reason"`
}

const (
	ReasonBadSubjectRef = "invalid subject reference"
	ReasonNoStudent     = "missing student id"
	ReasonBadComponent  = "unknown component"
	ReasonSubmitted     = "marks already submitted"
)

type Report struct {
	Received int    `json:"received"`
	Saved    int    `json:"saved"`
	Skipped  []Skip `json:"skipped"`
}

// EmptyBatchError means nothing in a batch could be saved.
type EmptyBatchError struct {
	Received int
	Skipped  []Skip
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("marks: nothing to save (%d received, %d skipped)", e.Received, len(e.Skipped))
}

// Saver filters, normalises and stores mark batches.
type Saver struct {
	store  Store
	accept SubjectRefPredicate
	scale  *grading.Scale
}

// NewSaver wires a store with the subject reference check. A nil predicate
// accepts every reference; a nil scale leaves final marks ungraded.
func NewSaver(store Store, accept SubjectRefPredicate, scale *grading.Scale) *Saver {
	if accept == nil {
		accept = AcceptAll
	}
	return &Saver{store: store, accept: accept, scale: scale}
}

// Save stores the acceptable tuples of entries. Tuples failing the subject
// check are skipped and reported; if none remain the batch is rejected with
// *EmptyBatchError before the store is touched. Values are overwritten, never
// accumulated, so resubmitting a batch is idempotent.
func (s *Saver) Save(ctx context.Context, entries []Entry) (Report, error) {
	rep := Report{Received: len(entries), Skipped: []Skip{}}

	accepted := make([]Entry, 0, len(entries))
	index := make(map[Key]int, len(entries))
	origin := make(map[Key]int, len(entries))
	for i, e := range entries {
		skip := func(reason string) {
			rep.Skipped = append(rep.Skipped, Skip{Index: i, StudentID: e.StudentID, SubjectID: e.SubjectID, Component: e.Component, Reason: reason})
		}
		switch {
		case !s.accept(e.SubjectID):
			skip(ReasonBadSubjectRef)
			continue
		case e.StudentID == "":
			skip(ReasonNoStudent)
			continue
		case !e.Component.Valid():
			skip(ReasonBadComponent)
			continue
		}
		n := s.normalise(e)
		k := n.Key()
		origin[k] = i
		if at, dup := index[k]; dup {
			accepted[at] = n // last write wins within a batch
			continue
		}
		index[k] = len(accepted)
		accepted = append(accepted, n)
	}
	if len(accepted) == 0 {
		return rep, &EmptyBatchError{Received: rep.Received, Skipped: rep.Skipped}
	}

	res, err := s.store.Upsert(ctx, accepted)
	if err != nil {
		return rep, err
	}
	for _, k := range res.Locked {
		rep.Skipped = append(rep.Skipped, Skip{Index: origin[k], StudentID: k.StudentID, SubjectID: k.SubjectID, Component: k.Component, Reason: ReasonSubmitted})
	}
	rep.Saved = res.Saved
	if rep.Saved == 0 {
		return rep, &EmptyBatchError{Received: rep.Received, Skipped: rep.Skipped}
	}
	return rep, nil
}

func (s *Saver) normalise(e Entry) Entry {
	out := Entry{StudentID: e.StudentID, SubjectID: e.SubjectID, Component: e.Component}
	if e.Component == ComponentAssignments {
		out.Values = make([]float64, len(e.Values))
		for i, v := range e.Values {
			out.Values[i] = Clamp(v)
		}
		out.Value = AggregateAssignments(out.Values)
		return out
	}
	out.Value = Clamp(e.Value)
	if e.Component == ComponentFinal && s.scale != nil {
		out.Grade = s.scale.GradeForMark(out.Value)
	}
	return out
}
