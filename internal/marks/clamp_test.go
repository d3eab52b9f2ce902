package marks

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{150, 100},
		{100, 100},
		{85.25, 85.3},
		{85.24, 85.2},
		{99.96, 100},
		{math.NaN(), 0},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in), "Clamp(%v)", tt.in)
	}
}

func TestClamp_Idempotent(t *testing.T) {
	for _, x := range []float64{-12.345, 0.05, 33.333, 66.66, 100.04, 250} {
		once := Clamp(x)
		assert.Equal(t, once, Clamp(once))
		assert.GreaterOrEqual(t, once, MinMark)
		assert.LessOrEqual(t, once, MaxMark)
	}
}

func TestParseScore(t *testing.T) {
	assert.Equal(t, 0.0, ParseScore(""))
	assert.Equal(t, 0.0, ParseScore("   "))
	assert.Equal(t, 0.0, ParseScore("abc"))
	assert.Equal(t, 72.5, ParseScore(" 72.5 "))
	assert.Equal(t, 100.0, ParseScore("140"))
	assert.Equal(t, 0.0, ParseScore("-3"))
	assert.Equal(t, 100.0, ParseScore("1e400"))
	assert.Equal(t, 0.0, ParseScore("-1e400"))
}

func TestClampAny(t *testing.T) {
	assert.Equal(t, 0.0, ClampAny(nil))
	assert.Equal(t, 55.0, ClampAny(55))
	assert.Equal(t, 100.0, ClampAny(int64(500)))
	assert.Equal(t, 12.5, ClampAny(float32(12.5)))
	assert.Equal(t, 40.0, ClampAny(json.Number("40")))
	assert.Equal(t, 0.0, ClampAny("n/a"))
	assert.Equal(t, 0.0, ClampAny(true))
}

func TestAggregateAssignments(t *testing.T) {
	assert.Equal(t, 0.0, AggregateAssignments(nil))
	assert.Equal(t, 85.0, AggregateAssignments([]float64{80, 90}))
	assert.Equal(t, 90.0, AggregateAssignments([]float64{80, 90, 120}), "inputs are clamped first")
}

func TestScore_UnmarshalJSON(t *testing.T) {
	var payload struct {
		A Score `json:"a"`
		B Score `json:"b"`
		C Score `json:"c"`
		D Score `json:"d"`
		E Score `json:"e"`
		F Score `json:"f"`
	}
	err := json.Unmarshal([]byte(`{"a":"85.5","b":null,"c":"","d":120,"e":true,"f":-4}`), &payload)
	require.NoError(t, err)
	assert.Equal(t, Score(85.5), payload.A)
	assert.Equal(t, Score(0), payload.B)
	assert.Equal(t, Score(0), payload.C)
	assert.Equal(t, Score(100), payload.D)
	assert.Equal(t, Score(0), payload.E)
	assert.Equal(t, Score(0), payload.F)

	assert.Equal(t, []float64{85.5, 0}, Scores([]Score{payload.A, payload.B}))
}
