package grading

import "fmt"

// UnknownGradeError reports a grade outside the closed set of a scale. It is
// a caller input bug and is never coerced to a default.
type UnknownGradeError struct {
	Grade string
	Scale string
}

func (e *UnknownGradeError) Error() string {
	if e.Scale == "" {
		return fmt.Sprintf("grading: unknown grade %q", e.Grade)
	}
	return fmt.Sprintf("grading: unknown grade %q for scale %s", e.Grade, e.Scale)
}
