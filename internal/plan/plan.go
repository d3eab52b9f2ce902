// Package plan persists each student's CGPA planning table and evaluates it
// against a grade scale.
package plan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/satresults/internal/grading"
)

var (
	ErrNotFound       = errors.New("plan: not found")
	ErrCourseNotFound = errors.New("plan: course not found")
	ErrInvalidCredits = errors.New("plan: course credits must be positive")
)

// Plan is one user's course list and optional target CGPA.
type Plan struct {
	UserID     string                 `json:"user_id"`
	TargetCGPA *float64               `json:"target_cgpa,omitempty"`
	Courses    []grading.CourseRecord `json:"courses"`
	UpdatedAt  int64                  `json:"updated_at"`
}

type Store interface {
	// Get returns ErrNotFound for users without a saved plan.
	Get(ctx context.Context, userID string) (Plan, error)
	Put(ctx context.Context, p Plan) error
	Delete(ctx context.Context, userID string) error
}

// Service edits plans through a Store. Mutations are serialised per process.
type Service struct {
	mu    sync.Mutex
	store Store
	scale *grading.Scale
	newID func() string
	now   func() time.Time
}

func NewService(store Store, scale *grading.Scale) *Service {
	return &Service{store: store, scale: scale, newID: uuid.NewString, now: time.Now}
}

// Load returns the saved plan, or an empty one.
func (s *Service) Load(ctx context.Context, userID string) (Plan, error) {
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Plan{UserID: userID, Courses: []grading.CourseRecord{}}, nil
	}
	if err != nil {
		return Plan{}, err
	}
	if p.Courses == nil {
		p.Courses = []grading.CourseRecord{}
	}
	return p, nil
}

// Replace overwrites the whole plan. Courses without an id get one.
func (s *Service) Replace(ctx context.Context, userID string, courses []grading.CourseRecord, target *float64) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Plan{UserID: userID, TargetCGPA: target, Courses: make([]grading.CourseRecord, 0, len(courses))}
	for _, c := range courses {
		c, err := s.normalise(c)
		if err != nil {
			return Plan{}, err
		}
		if c.ID == "" {
			c.ID = s.newID()
		}
		p.Courses = append(p.Courses, c)
	}
	return p, s.save(ctx, &p)
}

func (s *Service) AddCourse(ctx context.Context, userID string, rec grading.CourseRecord) (Plan, grading.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.normalise(rec)
	if err != nil {
		return Plan{}, grading.CourseRecord{}, err
	}
	p, err := s.Load(ctx, userID)
	if err != nil {
		return Plan{}, grading.CourseRecord{}, err
	}
	rec.ID = s.newID()
	p.Courses = append(p.Courses, rec)
	return p, rec, s.save(ctx, &p)
}

// UpdateCourse replaces the course with id courseID, keeping its id.
func (s *Service) UpdateCourse(ctx context.Context, userID, courseID string, rec grading.CourseRecord) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.normalise(rec)
	if err != nil {
		return Plan{}, err
	}
	p, err := s.Load(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	i := indexOf(p.Courses, courseID)
	if i < 0 {
		return Plan{}, ErrCourseNotFound
	}
	rec.ID = courseID
	p.Courses[i] = rec
	return p, s.save(ctx, &p)
}

func (s *Service) RemoveCourse(ctx context.Context, userID, courseID string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.Load(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	i := indexOf(p.Courses, courseID)
	if i < 0 {
		return Plan{}, ErrCourseNotFound
	}
	p.Courses = append(p.Courses[:i], p.Courses[i+1:]...)
	return p, s.save(ctx, &p)
}

// Evaluate runs the CGPA engine over the saved plan. Without a saved target
// the current CGPA is used, which yields no requirements.
func (s *Service) Evaluate(ctx context.Context, userID string) (grading.Plan, error) {
	p, err := s.Load(ctx, userID)
	if err != nil {
		return grading.Plan{}, err
	}
	target := 0.0
	if p.TargetCGPA != nil {
		target = *p.TargetCGPA
	} else if target, err = s.scale.CurrentCGPA(p.Courses); err != nil {
		return grading.Plan{}, err
	}
	return s.scale.Plan(p.Courses, target)
}

func (s *Service) save(ctx context.Context, p *Plan) error {
	p.UpdatedAt = s.now().Unix()
	return s.store.Put(ctx, *p)
}

// normalise canonicalises grade spellings and rejects grades the scale does
// not know. Empty grades mean "not graded yet". Stored courses always carry
// credits.
func (s *Service) normalise(rec grading.CourseRecord) (grading.CourseRecord, error) {
	if rec.Credits <= 0 {
		return rec, ErrInvalidCredits
	}
	rec.Name = strings.TrimSpace(rec.Name)
	for _, g := range []*grading.Grade{&rec.Current, &rec.Target} {
		if strings.TrimSpace(string(*g)) == "" {
			*g = ""
			continue
		}
		parsed, err := s.scale.Parse(string(*g))
		if err != nil {
			return rec, err
		}
		*g = parsed
	}
	return rec, nil
}

func indexOf(cs []grading.CourseRecord, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}
