package http

import (
	"net/http"

	"github.com/mind-engage/satresults/internal/grading"
	"github.com/mind-engage/satresults/internal/marks"
	"github.com/mind-engage/satresults/internal/metrics"
)

// GET /grades/scale
func (s *server) getScale(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"key":        s.Scale.Key(),
		"max_points": s.Scale.MaxPoints(),
		"bands":      s.Scale.Bands(),
	})
}

type lookupReq struct {
	Marks []marks.Score `json:"marks" validate:"required,min=1,max=1000"`
}

type lookupResult struct {
	Mark   float64       `json:"mark"`
	Grade  grading.Grade `json:"grade"`
	Points int           `json:"points"`
}

// POST /grades/lookup  { "marks": [91, "78.5", null] }
func (s *server) lookupGrades(w http.ResponseWriter, r *http.Request) {
	var req lookupReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	out := make([]lookupResult, 0, len(req.Marks))
	for _, m := range req.Marks {
		g := s.Scale.GradeForMark(m.Float())
		p, err := s.Scale.PointsFor(g)
		if err != nil {
			fail(w, s.Log, err)
			return
		}
		out = append(out, lookupResult{Mark: m.Float(), Grade: g, Points: p})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

type courseReq struct {
	ID      string `json:"id" validate:"max=64"`
	Name    string `json:"name" validate:"max=128"`
	Credits int    `json:"credits" validate:"gt=0,lte=40"`
	Current string `json:"current_grade" validate:"max=8"`
	Target  string `json:"target_grade" validate:"max=8"`
}

func (c courseReq) record() grading.CourseRecord {
	return grading.CourseRecord{
		ID:      c.ID,
		Name:    c.Name,
		Credits: c.Credits,
		Current: grading.Grade(c.Current),
		Target:  grading.Grade(c.Target),
	}
}

type planReq struct {
	Courses    []courseReq `json:"courses" validate:"max=200,dive"`
	TargetCGPA *float64    `json:"target_cgpa" validate:"omitempty,gte=0,lte=10"`
}

// parseGrades canonicalises grade spellings against the scale.
func (s *server) parseGrades(courses []courseReq) ([]grading.CourseRecord, error) {
	out := make([]grading.CourseRecord, 0, len(courses))
	for _, c := range courses {
		rec := c.record()
		for _, g := range []*grading.Grade{&rec.Current, &rec.Target} {
			if *g == "" {
				continue
			}
			parsed, err := s.Scale.Parse(string(*g))
			if err != nil {
				return nil, err
			}
			*g = parsed
		}
		out = append(out, rec)
	}
	return out, nil
}

// POST /cgpa/plan  stateless evaluation of the posted courses
func (s *server) computePlan(w http.ResponseWriter, r *http.Request) {
	var req planReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	recs, err := s.parseGrades(req.Courses)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	target := 0.0
	if req.TargetCGPA != nil {
		target = *req.TargetCGPA
	} else if target, err = s.Scale.CurrentCGPA(recs); err != nil {
		fail(w, s.Log, err)
		return
	}
	p, err := s.Scale.Plan(recs, target)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	metrics.PlansComputed.Inc()
	writeJSON(w, http.StatusOK, p.Rounded())
}
