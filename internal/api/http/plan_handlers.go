package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/satresults/internal/auth/middleware"
	"github.com/mind-engage/satresults/internal/grading"
	"github.com/mind-engage/satresults/internal/metrics"
)

// GET /plans/me
func (s *server) getMyPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plans.Load(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /plans/me/evaluation
func (s *server) evaluateMyPlan(w http.ResponseWriter, r *http.Request) {
	res, err := s.Plans.Evaluate(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	metrics.PlansComputed.Inc()
	writeJSON(w, http.StatusOK, res.Rounded())
}

// PUT /plans/me  replaces courses and target
func (s *server) putMyPlan(w http.ResponseWriter, r *http.Request) {
	var req planReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	recs := make([]grading.CourseRecord, 0, len(req.Courses))
	for _, c := range req.Courses {
		recs = append(recs, c.record())
	}
	p, err := s.Plans.Replace(r.Context(), auth.SubjectFromContext(r.Context()), recs, req.TargetCGPA)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /plans/me/courses
func (s *server) addCourse(w http.ResponseWriter, r *http.Request) {
	var req courseReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	_, rec, err := s.Plans.AddCourse(r.Context(), auth.SubjectFromContext(r.Context()), req.record())
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// PUT /plans/me/courses/{courseID}
func (s *server) updateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	p, err := s.Plans.UpdateCourse(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "courseID"), req.record())
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /plans/me/courses/{courseID}
func (s *server) removeCourse(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Plans.RemoveCourse(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "courseID")); err != nil {
		fail(w, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
