package marks

import (
	"context"

	"github.com/mind-engage/satresults/internal/grading"
)

// Service ties the mark stores to the criteria formulas.
type Service struct {
	store    Store
	criteria CriteriaStore
	saver    *Saver
	scale    *grading.Scale
}

func NewService(store Store, criteria CriteriaStore, accept SubjectRefPredicate, scale *grading.Scale) *Service {
	return &Service{
		store:    store,
		criteria: criteria,
		saver:    NewSaver(store, accept, scale),
		scale:    scale,
	}
}

func (s *Service) Save(ctx context.Context, entries []Entry) (Report, error) {
	return s.saver.Save(ctx, entries)
}

// AcceptsSubject applies the configured subject reference check.
func (s *Service) AcceptsSubject(ref string) bool { return s.saver.accept(ref) }

func (s *Service) Submit(ctx context.Context, subjectID string, c Component) (int, error) {
	return s.store.Submit(ctx, subjectID, c)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	return s.store.List(ctx, f)
}

func (s *Service) Criteria(ctx context.Context, name string) (Criteria, error) {
	return s.criteria.GetCriteria(ctx, name)
}

// UpdateCriteria compiles the formula before storing it and returns the
// non-blocking warnings for the caller to display.
func (s *Service) UpdateCriteria(ctx context.Context, name string, c Criteria) ([]string, error) {
	if _, err := Compile(c.Formula, IdentInternal, IdentExternal); err != nil {
		return nil, err
	}
	if err := s.criteria.PutCriteria(ctx, name, c); err != nil {
		return nil, err
	}
	return c.Warnings(), nil
}

// Calculator loads the named criteria and compiles it.
func (s *Service) Calculator(ctx context.Context, name string) (*Calculator, error) {
	c, err := s.criteria.GetCriteria(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewCalculator(c, s.scale)
}

// FinalsReport lists the final marks computed for one subject.
type FinalsReport struct {
	SubjectID string   `json:"subject_id"`
	Criteria  Criteria `json:"criteria"`
	Finals    []Entry  `json:"finals"`
	Locked    []Key    `json:"locked"`
}

// ComputeFinals applies the final criteria to every student with an
// internal or external mark in the subject and stores the results as final
// entries. A missing component counts as 0. Submitted finals stay as they are.
func (s *Service) ComputeFinals(ctx context.Context, subjectID string) (FinalsReport, error) {
	rep := FinalsReport{SubjectID: subjectID, Finals: []Entry{}, Locked: []Key{}}
	calc, err := s.Calculator(ctx, CriteriaFinal)
	if err != nil {
		return rep, err
	}
	rep.Criteria = calc.Criteria()

	entries, err := s.store.List(ctx, Filter{SubjectID: subjectID})
	if err != nil {
		return rep, err
	}
	type pair struct{ internal, external float64 }
	var order []string
	pairs := map[string]*pair{}
	for _, e := range entries {
		if e.Component != ComponentInternal && e.Component != ComponentExternal {
			continue
		}
		p, ok := pairs[e.StudentID]
		if !ok {
			p = &pair{}
			pairs[e.StudentID] = p
			order = append(order, e.StudentID)
		}
		if e.Component == ComponentInternal {
			p.internal = e.Value
		} else {
			p.external = e.Value
		}
	}
	if len(order) == 0 {
		return rep, nil
	}

	finals := make([]Entry, 0, len(order))
	for _, student := range order {
		p := pairs[student]
		fm, err := calc.Final(p.internal, p.external)
		if err != nil {
			return rep, err
		}
		finals = append(finals, Entry{
			StudentID: student,
			SubjectID: subjectID,
			Component: ComponentFinal,
			Value:     fm.Value,
			Grade:     fm.Grade,
		})
	}
	res, err := s.store.Upsert(ctx, finals)
	if err != nil {
		return rep, err
	}
	locked := make(map[Key]bool, len(res.Locked))
	for _, k := range res.Locked {
		locked[k] = true
	}
	for _, f := range finals {
		if !locked[f.Key()] {
			rep.Finals = append(rep.Finals, f)
		}
	}
	rep.Locked = append(rep.Locked, res.Locked...)
	return rep, nil
}
