package marks

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	MinMark = 0.0
	MaxMark = 100.0
)

// Clamp rounds to one decimal and bounds the result to [0,100]. NaN is 0.
// Every numeric mark field goes through Clamp.
func Clamp(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	x = math.Round(x*10) / 10
	switch {
	case x <= MinMark:
		return MinMark
	case x > MaxMark:
		return MaxMark
	}
	return x
}

// ParseScore turns form input into a mark; empty or non-numeric text is 0.
// Out-of-range numbers still clamp, so "1e400" is 100.
func ParseScore(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return Clamp(v)
}

// ClampAny accepts the loosely typed values form payloads carry.
func ClampAny(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return Clamp(t)
	case float32:
		return Clamp(float64(t))
	case int:
		return Clamp(float64(t))
	case int64:
		return Clamp(float64(t))
	case int32:
		return Clamp(float64(t))
	case json.Number:
		return ParseScore(t.String())
	case string:
		return ParseScore(t)
	case Score:
		return Clamp(float64(t))
	default:
		return 0
	}
}

// AggregateAssignments is the mean of the clamped scores, 0 for none.
func AggregateAssignments(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += Clamp(s)
	}
	return sum / float64(len(scores))
}

// Score is a clamped mark that decodes from a JSON number, a numeric string,
// an empty string or null.
type Score float64

func (s *Score) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Score(ParseScore(str))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*s = 0
		return nil
	}
	*s = Score(Clamp(f))
	return nil
}

func (s Score) Float() float64 { return float64(s) }

// Scores converts a slice for aggregation.
func Scores(in []Score) []float64 {
	out := make([]float64, len(in))
	for i, s := range in {
		out[i] = float64(s)
	}
	return out
}
