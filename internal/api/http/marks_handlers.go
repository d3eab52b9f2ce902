package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/satresults/internal/audit"
	auth "github.com/mind-engage/satresults/internal/auth/middleware"
	"github.com/mind-engage/satresults/internal/marks"
	"github.com/mind-engage/satresults/internal/metrics"
	"github.com/mind-engage/satresults/internal/rbac"
)

func validCriteriaName(name string) bool {
	return name == marks.CriteriaFinal || name == marks.CriteriaInternal
}

// GET /criteria/{name}
func (s *server) getCriteria(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validCriteriaName(name) {
		writeError(w, http.StatusNotFound, "unknown criteria "+name, nil)
		return
	}
	c, err := s.Marks.Criteria(r.Context(), name)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "criteria": c, "warnings": c.Warnings()})
}

// PUT /criteria/{name}  the formula is compiled before anything is stored
func (s *server) putCriteria(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validCriteriaName(name) {
		writeError(w, http.StatusNotFound, "unknown criteria "+name, nil)
		return
	}
	var c marks.Criteria
	if err := decode(w, r, &c); err != nil {
		fail(w, s.Log, err)
		return
	}
	warnings, err := s.Marks.UpdateCriteria(r.Context(), name, c)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	s.record(r, audit.CriteriaUpdated, name, c)
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "criteria": c, "warnings": warnings})
}

type previewReq struct {
	Criteria    string        `json:"criteria" validate:"omitempty,oneof=final internal"`
	Internal    marks.Score   `json:"internal"`
	External    marks.Score   `json:"external"`
	FAT         *marks.Score  `json:"fat"`
	Assignments []marks.Score `json:"assignments" validate:"max=5"`
}

// POST /marks/preview
//
// With "fat" set the FAT flow runs (fat -> internal, mean(assignments) ->
// external) under the internal criteria; otherwise the final criteria
// combines internal and external.
func (s *server) previewFinal(w http.ResponseWriter, r *http.Request) {
	var req previewReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	name := req.Criteria
	if name == "" {
		name = marks.CriteriaFinal
		if req.FAT != nil {
			name = marks.CriteriaInternal
		}
	}
	calc, err := s.Marks.Calculator(r.Context(), name)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	var fm marks.FinalMark
	if req.FAT != nil {
		fm, err = calc.FromFAT(req.FAT.Float(), marks.Scores(req.Assignments))
	} else {
		fm, err = calc.Final(req.Internal.Float(), req.External.Float())
	}
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"criteria": name, "result": fm})
}

type entryReq struct {
	StudentID string          `json:"student_id" validate:"required,max=64"`
	SubjectID string          `json:"subject_id" validate:"max=64"`
	Component marks.Component `json:"component" validate:"required"`
	Value     marks.Score     `json:"value"`
	Values    []marks.Score   `json:"values" validate:"max=5"`
}

type batchReq struct {
	Entries []entryReq `json:"entries" validate:"required,min=1,max=2000,dive"`
}

// POST /marks/batch
func (s *server) saveMarks(w http.ResponseWriter, r *http.Request) {
	var req batchReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	entries := make([]marks.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, marks.Entry{
			StudentID: e.StudentID,
			SubjectID: e.SubjectID,
			Component: e.Component,
			Value:     e.Value.Float(),
			Values:    marks.Scores(e.Values),
		})
	}
	rep, err := s.Marks.Save(r.Context(), entries)
	for _, sk := range rep.Skipped {
		metrics.MarksSkipped.WithLabelValues(sk.Reason).Inc()
	}
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	metrics.MarksSaved.Add(float64(rep.Saved))
	s.record(r, audit.MarksSaved, "batch", rep)
	writeJSON(w, http.StatusOK, rep)
}

type submitReq struct {
	SubjectID string          `json:"subject_id" validate:"required,max=64"`
	Component marks.Component `json:"component" validate:"required"`
}

// POST /marks/submit  locks a subject component against further edits
func (s *server) submitMarks(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	if !req.Component.Valid() {
		writeError(w, http.StatusBadRequest, "unknown component "+string(req.Component), nil)
		return
	}
	if !s.Marks.AcceptsSubject(req.SubjectID) {
		writeError(w, http.StatusBadRequest, "invalid subject reference "+req.SubjectID, nil)
		return
	}
	n, err := s.Marks.Submit(r.Context(), req.SubjectID, req.Component)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	s.record(r, audit.MarksSubmitted, req.SubjectID, map[string]any{"component": req.Component, "locked": n})
	writeJSON(w, http.StatusOK, map[string]any{"subject_id": req.SubjectID, "component": req.Component, "locked": n})
}

// GET /marks?subject_id=&student_id=&component=
//
// Callers without marks:view-all only see their own marks.
func (s *server) listMarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := marks.Filter{
		SubjectID: q.Get("subject_id"),
		StudentID: q.Get("student_id"),
		Component: marks.Component(q.Get("component")),
	}
	if !rbac.Can(r, rbac.PermMarksViewAll) {
		f.StudentID = auth.SubjectFromContext(r.Context())
	}
	out, err := s.Marks.List(r.Context(), f)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

type finalsReq struct {
	SubjectID string `json:"subject_id" validate:"required,max=64"`
}

// POST /marks/finals
func (s *server) computeFinals(w http.ResponseWriter, r *http.Request) {
	var req finalsReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	rep, err := s.Marks.ComputeFinals(r.Context(), req.SubjectID)
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	s.record(r, audit.FinalsComputed, req.SubjectID, map[string]int{"computed": len(rep.Finals), "locked": len(rep.Locked)})
	writeJSON(w, http.StatusOK, rep)
}

// record appends an audit event; failures are logged, not returned.
func (s *server) record(r *http.Request, typ, key string, data any) {
	actor := auth.SubjectFromContext(r.Context())
	if err := s.Audit.Record(r.Context(), typ, key, actor, data); err != nil {
		s.Log.Warn("audit append failed", zap.String("type", typ), zap.String("key", key), zap.Error(err))
	}
}
