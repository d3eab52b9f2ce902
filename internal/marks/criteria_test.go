package marks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/satresults/internal/grading"
)

func TestComputeFinal_Default(t *testing.T) {
	fm, err := ComputeFinal(DefaultCriteria(), 85, 78)
	require.NoError(t, err)
	assert.Equal(t, 80.1, fm.Value)
	assert.Empty(t, fm.Grade)
}

func TestComputeFinal_ClampsInputsAndResult(t *testing.T) {
	fm, err := ComputeFinal(Criteria{InternalWeight: 50, ExternalWeight: 50, Formula: "internal + external"}, 140, 90)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fm.Value)

	fm, err = ComputeFinal(Criteria{Formula: "internal - external"}, 10, 90)
	require.NoError(t, err)
	assert.Equal(t, 0.0, fm.Value)
}

func TestComputeFinal_BadFormula(t *testing.T) {
	_, err := ComputeFinal(Criteria{InternalWeight: 30, ExternalWeight: 70, Formula: "internal +* 2"}, 50, 50)
	var fe *FormulaError
	assert.True(t, errors.As(err, &fe))

	_, err = ComputeFinal(Criteria{Formula: "internal / (external - 50)"}, 50, 50)
	assert.True(t, errors.As(err, &fe))
}

func TestCalculator_Grades(t *testing.T) {
	calc, err := NewCalculator(DefaultCriteria(), grading.TenPoint)
	require.NoError(t, err)

	fm, err := calc.Final(85, 78)
	require.NoError(t, err)
	assert.Equal(t, FinalMark{Value: 80.1, Grade: "A+"}, fm)

	fm, err = calc.Final(20, 30)
	require.NoError(t, err)
	assert.Equal(t, grading.Grade("F"), fm.Grade)
	assert.Equal(t, DefaultCriteria(), calc.Criteria())
}

func TestCalculator_FromFAT(t *testing.T) {
	calc, err := NewCalculator(Criteria{InternalWeight: 50, ExternalWeight: 50, Formula: "(internal + external) / 2"}, nil)
	require.NoError(t, err)

	fm, err := calc.FromFAT(60, []float64{70, 90})
	require.NoError(t, err)
	assert.Equal(t, 70.0, fm.Value)

	fm, err = calc.FromFAT(60, nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, fm.Value, "no assignments aggregate to 0")
}

func TestCriteria_Warnings(t *testing.T) {
	assert.Empty(t, DefaultCriteria().Warnings())
	w := Criteria{InternalWeight: 40, ExternalWeight: 70, Formula: "internal"}.Warnings()
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "110")
}
