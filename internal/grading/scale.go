package grading

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Grade is a letter grade from a Scale, e.g. "A+".
type Grade string

// Band is one rung of a scale: the grade, its grade point and the lowest mark
// (inclusive) that earns it.
type Band struct {
	Grade   Grade   `json:"grade"`
	Points  int     `json:"points"`
	MinMark float64 `json:"min_mark"`
}

// Scale is a closed, ordered set of grades (highest first).
type Scale struct {
	key    string
	bands  []Band
	points map[Grade]int
}

const (
	MinPoints = 0
	MaxPoints = 10
)

// TenPointKey is the registry key of the canonical scale.
const TenPointKey = "ten-point.v1"

// NewScale builds a scale from bands ordered highest grade first.
func NewScale(key string, bands ...Band) (*Scale, error) {
	if len(bands) == 0 {
		return nil, errors.New("grading: scale needs at least one band")
	}
	s := &Scale{key: key, bands: make([]Band, len(bands)), points: make(map[Grade]int, len(bands))}
	copy(s.bands, bands)
	for i, b := range s.bands {
		if strings.TrimSpace(string(b.Grade)) == "" {
			return nil, fmt.Errorf("grading: band %d has no grade", i)
		}
		if _, dup := s.points[b.Grade]; dup {
			return nil, fmt.Errorf("grading: duplicate grade %q", b.Grade)
		}
		if b.Points < MinPoints || b.Points > MaxPoints {
			return nil, fmt.Errorf("grading: grade %q points %d outside [%d,%d]", b.Grade, b.Points, MinPoints, MaxPoints)
		}
		if i > 0 {
			prev := s.bands[i-1]
			if b.Points > prev.Points {
				return nil, fmt.Errorf("grading: grade %q outranks %q", b.Grade, prev.Grade)
			}
			if b.MinMark >= prev.MinMark {
				return nil, fmt.Errorf("grading: threshold of %q must be below %q", b.Grade, prev.Grade)
			}
		}
		s.points[b.Grade] = b.Points
	}
	last := s.bands[len(s.bands)-1]
	if last.Points != 0 || last.MinMark != 0 {
		return nil, fmt.Errorf("grading: lowest grade %q must have 0 points and a 0 threshold", last.Grade)
	}
	return s, nil
}

// MustScale is NewScale that panics; for package-level scales.
func MustScale(key string, bands ...Band) *Scale {
	s, err := NewScale(key, bands...)
	if err != nil {
		panic(err)
	}
	return s
}

// TenPoint is the canonical O..F scale shared by marks entry and CGPA planning.
var TenPoint = MustScale(TenPointKey,
	Band{Grade: "O", Points: 10, MinMark: 90},
	Band{Grade: "A+", Points: 9, MinMark: 80},
	Band{Grade: "A", Points: 8, MinMark: 70},
	Band{Grade: "B+", Points: 7, MinMark: 60},
	Band{Grade: "B", Points: 6, MinMark: 50},
	Band{Grade: "C", Points: 5, MinMark: 40},
	Band{Grade: "F", Points: 0, MinMark: 0},
)

func (s *Scale) Key() string { return s.key }

// Bands returns a copy of the ladder, highest first.
func (s *Scale) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// Grades lists the closed set, highest first.
func (s *Scale) Grades() []Grade {
	out := make([]Grade, len(s.bands))
	for i, b := range s.bands {
		out[i] = b.Grade
	}
	return out
}

func (s *Scale) Top() Grade { return s.bands[0].Grade }
func (s *Scale) Bottom() Grade { return s.bands[len(s.bands)-1].Grade }
func (s *Scale) MaxPoints() int { return s.bands[0].Points }

func (s *Scale) Has(g Grade) bool {
	_, ok := s.points[g]
	return ok
}

// PointsFor returns the grade point of g or an *UnknownGradeError.
func (s *Scale) PointsFor(g Grade) (int, error) {
	p, ok := s.points[g]
	if !ok {
		return 0, &UnknownGradeError{Grade: string(g), Scale: s.key}
	}
	return p, nil
}

// Parse normalises user input ("a+ " -> "A+") and checks membership.
func (s *Scale) Parse(raw string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Has(g) {
		return "", &UnknownGradeError{Grade: raw, Scale: s.key}
	}
	return g, nil
}

// GradeForMark walks the ladder highest first and returns the first band the
// mark reaches. Marks are expected in [0,100]; anything lower gets the bottom grade.
func (s *Scale) GradeForMark(mark float64) Grade {
	for _, b := range s.bands {
		if mark >= b.MinMark {
			return b.Grade
		}
	}
	return s.Bottom()
}

// lowestWithPoints returns the lowest grade whose points reach want.
func (s *Scale) lowestWithPoints(want int) (Grade, bool) {
	for i := len(s.bands) - 1; i >= 0; i-- {
		if s.bands[i].Points >= want {
			return s.bands[i].Grade, true
		}
	}
	return s.Top(), false
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Scale{TenPointKey: TenPoint}
)

// Register binds a scale to its key, replacing any previous binding.
func Register(s *Scale) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.key] = s
}

// Lookup finds a registered scale.
func Lookup(key string) (*Scale, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[key]
	return s, ok
}

// Default is the canonical ten-point scale.
func Default() *Scale { return TenPoint }
