package grading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsFor(t *testing.T) {
	want := map[Grade]int{"O": 10, "A+": 9, "A": 8, "B+": 7, "B": 6, "C": 5, "F": 0}
	for g, p := range want {
		got, err := TenPoint.PointsFor(g)
		require.NoError(t, err)
		assert.Equal(t, p, got, "grade %s", g)
	}
}

func TestPointsFor_Unknown(t *testing.T) {
	_, err := TenPoint.PointsFor("E")
	var ug *UnknownGradeError
	require.True(t, errors.As(err, &ug))
	assert.Equal(t, "E", ug.Grade)
	assert.Equal(t, TenPointKey, ug.Scale)

	_, err = TenPoint.PointsFor("a+")
	assert.Error(t, err, "lookup is exact; Parse normalises")
}

func TestParse(t *testing.T) {
	g, err := TenPoint.Parse("  a+ ")
	require.NoError(t, err)
	assert.Equal(t, Grade("A+"), g)

	_, err = TenPoint.Parse("Z")
	var ug *UnknownGradeError
	assert.True(t, errors.As(err, &ug))
}

func TestGradeForMark_Ladder(t *testing.T) {
	tests := []struct {
		mark float64
		want Grade
	}{
		{100, "O"},
		{90, "O"},
		{89.9, "A+"},
		{80, "A+"},
		{79.9, "A"},
		{70, "A"},
		{60, "B+"},
		{50, "B"},
		{40, "C"},
		{39.9, "F"},
		{0, "F"},
		{-5, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TenPoint.GradeForMark(tt.mark), "mark %v", tt.mark)
	}
}

// Scaling each grade point by ten lands exactly on a ladder boundary.
func TestGradeForMark_PointBoundaries(t *testing.T) {
	want := map[Grade]Grade{
		"O":  "O",  // 100
		"A+": "O",  // 90
		"A":  "A+", // 80
		"B+": "A",  // 70
		"B":  "B+", // 60
		"C":  "B",  // 50
		"F":  "F",  // 0
	}
	for _, g := range TenPoint.Grades() {
		p, err := TenPoint.PointsFor(g)
		require.NoError(t, err)
		assert.Equal(t, want[g], TenPoint.GradeForMark(float64(p*10)), "grade %s", g)
	}
}

func TestScaleIsMonotonic(t *testing.T) {
	bands := TenPoint.Bands()
	for i := 1; i < len(bands); i++ {
		assert.LessOrEqual(t, bands[i].Points, bands[i-1].Points)
	}
	assert.Equal(t, Grade("O"), TenPoint.Top())
	assert.Equal(t, Grade("F"), TenPoint.Bottom())
	assert.Equal(t, 10, TenPoint.MaxPoints())
}

func TestNewScale_Invariants(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{"empty", nil},
		{"blank grade", []Band{{Grade: " ", Points: 0}}},
		{"duplicate", []Band{{Grade: "A", Points: 5, MinMark: 50}, {Grade: "A", Points: 0}}},
		{"points out of range", []Band{{Grade: "S", Points: 11, MinMark: 50}, {Grade: "F"}}},
		{"not ordered", []Band{{Grade: "B", Points: 5, MinMark: 50}, {Grade: "A", Points: 8, MinMark: 40}, {Grade: "F"}}},
		{"thresholds not decreasing", []Band{{Grade: "A", Points: 8, MinMark: 50}, {Grade: "B", Points: 6, MinMark: 50}, {Grade: "F"}}},
		{"bottom not zero", []Band{{Grade: "A", Points: 8, MinMark: 50}, {Grade: "D", Points: 1, MinMark: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScale("t", tt.bands...)
			assert.Error(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	s, ok := Lookup(TenPointKey)
	require.True(t, ok)
	assert.Same(t, TenPoint, s)

	pf := MustScale("pass-fail.test", Band{Grade: "P", Points: 10, MinMark: 50}, Band{Grade: "F"})
	Register(pf)
	got, ok := Lookup("pass-fail.test")
	require.True(t, ok)
	assert.Equal(t, Grade("P"), got.GradeForMark(75))

	_, ok = Lookup("missing")
	assert.False(t, ok)
}
