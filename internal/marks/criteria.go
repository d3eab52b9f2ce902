package marks

import (
	"fmt"
	"math"

	"github.com/mind-engage/satresults/internal/grading"
)

// Criteria configures how internal and external marks combine into a final
// mark. The weights are informative; Formula is authoritative.
type Criteria struct {
	InternalWeight float64 `json:"internal_weight" validate:"gte=0,lte=100"`
	ExternalWeight float64 `json:"external_weight" validate:"gte=0,lte=100"`
	Formula        string  `json:"formula" validate:"required,max=256"`
}

// DefaultCriteria is the 30/70 internal/external split.
func DefaultCriteria() Criteria {
	return Criteria{
		InternalWeight: 30,
		ExternalWeight: 70,
		Formula:        "(internal * 0.3) + (external * 0.7)",
	}
}

// Warnings lists inconsistencies worth surfacing that do not block a save.
func (c Criteria) Warnings() []string {
	var out []string
	if sum := c.InternalWeight + c.ExternalWeight; math.Abs(sum-100) > 1e-9 {
		out = append(out, fmt.Sprintf("internal and external weights add up to %g, not 100", sum))
	}
	return out
}

// FinalMark is a clamped final mark with an optional letter grade.
type FinalMark struct {
	Value float64       `json:"value"`
	Grade grading.Grade `json:"grade,omitempty"`
}

// Calculator applies one compiled criteria formula across many students.
// A nil scale skips grade annotation.
type Calculator struct {
	criteria Criteria
	formula  *Formula
	scale    *grading.Scale
}

func NewCalculator(c Criteria, scale *grading.Scale) (*Calculator, error) {
	f, err := Compile(c.Formula, IdentInternal, IdentExternal)
	if err != nil {
		return nil, err
	}
	return &Calculator{criteria: c, formula: f, scale: scale}, nil
}

func (c *Calculator) Criteria() Criteria { return c.criteria }

// Final clamps both inputs, evaluates the formula and clamps the result.
func (c *Calculator) Final(internal, external float64) (FinalMark, error) {
	v, err := c.formula.Eval(map[string]float64{
		IdentInternal: Clamp(internal),
		IdentExternal: Clamp(external),
	})
	if err != nil {
		return FinalMark{}, err
	}
	fm := FinalMark{Value: Clamp(v)}
	if c.scale != nil {
		fm.Grade = c.scale.GradeForMark(fm.Value)
	}
	return fm, nil
}

// FromFAT is the FAT flow: the FAT mark binds to internal and the mean of the
// assignment marks binds to external.
func (c *Calculator) FromFAT(fat float64, assignments []float64) (FinalMark, error) {
	return c.Final(fat, AggregateAssignments(assignments))
}

// ComputeFinal is the one-off form of Calculator.Final without a grade.
func ComputeFinal(c Criteria, internal, external float64) (FinalMark, error) {
	calc, err := NewCalculator(c, nil)
	if err != nil {
		return FinalMark{}, err
	}
	return calc.Final(internal, external)
}
