package grading

import "math"

// CourseRecord is one course in a student's CGPA plan. Current and Target are
// empty when unset.
type CourseRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Credits int    `json:"credits"`
	Current Grade  `json:"current_grade,omitempty"`
	Target  Grade  `json:"target_grade,omitempty"`
}

// Requirement is the minimum grade a course needs for the plan's target.
type Requirement struct {
	Course         CourseRecord `json:"course"`
	RequiredPoints int          `json:"required_points"`
	Required       Grade        `json:"required_grade"`
	Reachable      bool         `json:"reachable"`
}

// Plan summarises a set of course records against a target CGPA.
type Plan struct {
	Current      float64       `json:"current_cgpa"`
	Projected    float64       `json:"projected_cgpa"`
	Target       float64       `json:"target_cgpa"`
	Credits      int           `json:"total_credits"`
	Requirements []Requirement `json:"requirements"`
}

// ceilSlack absorbs float noise like 7.000000000000001 before rounding up.
const ceilSlack = 1e-9

// CurrentCGPA is the credit-weighted mean of current grade points. Ungraded
// records and records without positive credits are left out; with no credits
// the result is 0.
func (s *Scale) CurrentCGPA(records []CourseRecord) (float64, error) {
	var points, credits float64
	for _, r := range records {
		if r.Credits <= 0 || r.Current == "" {
			continue
		}
		p, err := s.PointsFor(r.Current)
		if err != nil {
			return 0, err
		}
		points += float64(r.Credits) * float64(p)
		credits += float64(r.Credits)
	}
	if credits == 0 {
		return 0, nil
	}
	return points / credits, nil
}

// ProjectedCGPA substitutes each target grade for the current one. A record
// with neither contributes its credits at 0 points.
func (s *Scale) ProjectedCGPA(records []CourseRecord) (float64, error) {
	var points, credits float64
	for _, r := range records {
		if r.Credits <= 0 {
			continue
		}
		g := r.Target
		if g == "" {
			g = r.Current
		}
		p := 0
		if g != "" {
			var err error
			if p, err = s.PointsFor(g); err != nil {
				return 0, err
			}
		}
		points += float64(r.Credits) * float64(p)
		credits += float64(r.Credits)
	}
	if credits == 0 {
		return 0, nil
	}
	return points / credits, nil
}

// RequiredGrade finds the lowest grade that lifts the record far enough to
// reach targetCGPA:
//
//	required points >= ceil((targetCGPA - currentCGPA) * credits + current points)
//
// ok is false when the record is not an improvement (no target, or a target
// not above the current grade). When no grade reaches the threshold the top
// grade is returned with Reachable=false.
func (s *Scale) RequiredGrade(rec CourseRecord, currentCGPA, targetCGPA float64) (req Requirement, ok bool, err error) {
	if rec.Target == "" {
		return Requirement{}, false, nil
	}
	tgt, err := s.PointsFor(rec.Target)
	if err != nil {
		return Requirement{}, false, err
	}
	cur := 0
	if rec.Current != "" {
		if cur, err = s.PointsFor(rec.Current); err != nil {
			return Requirement{}, false, err
		}
	}
	if tgt <= cur {
		return Requirement{}, false, nil
	}

	need := int(math.Ceil((targetCGPA-currentCGPA)*float64(rec.Credits) + float64(cur) - ceilSlack))
	g, reachable := s.lowestWithPoints(need)
	return Requirement{
		Course:         rec,
		RequiredPoints: need,
		Required:       g,
		Reachable:      reachable,
	}, true, nil
}

// Plan computes current and projected CGPA and the requirement of every
// improving record. Empty input yields a zero plan.
func (s *Scale) Plan(records []CourseRecord, targetCGPA float64) (Plan, error) {
	current, err := s.CurrentCGPA(records)
	if err != nil {
		return Plan{}, err
	}
	projected, err := s.ProjectedCGPA(records)
	if err != nil {
		return Plan{}, err
	}
	p := Plan{
		Current:      current,
		Projected:    projected,
		Target:       targetCGPA,
		Requirements: []Requirement{},
	}
	for _, r := range records {
		if r.Credits > 0 {
			p.Credits += r.Credits
		}
		req, ok, err := s.RequiredGrade(r, current, targetCGPA)
		if err != nil {
			return Plan{}, err
		}
		if ok {
			p.Requirements = append(p.Requirements, req)
		}
	}
	return p, nil
}

// Rounded returns the plan with CGPA values at display precision.
func (p Plan) Rounded() Plan {
	p.Current = Round2(p.Current)
	p.Projected = Round2(p.Projected)
	p.Target = Round2(p.Target)
	return p
}

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
