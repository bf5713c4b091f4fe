package pipeline

import (
	"fmt"
	"strings"
)

// Stage identifies one of the four planning stages. Stages are totally ordered:
// each stage depends on completion of the one before it.
type Stage int

const (
	DP Stage = iota // Demand Planning
	MP              // Master Planning
	FP              // Factory Planning
	TP              // Transport Planning

	numStages = 4
)

var stageNames = [numStages]string{"dp", "mp", "fp", "tp"}

var stageLabels = [numStages]string{
	"Demand Planning",
	"Master Planning",
	"Factory Planning",
	"Transport Planning",
}

// Order returns the stages in dependency order. The returned slice is a copy.
func Order() []Stage {
	return []Stage{DP, MP, FP, TP}
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool { return s >= DP && s <= TP }

// String returns the short lowercase id ("dp", "mp", "fp", "tp").
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Label returns the human-readable stage name, e.g. "Master Planning".
func (s Stage) Label() string {
	if !s.Valid() {
		return s.String()
	}
	return stageLabels[s]
}

// MarshalText implements encoding.TextMarshaler so stages render as ids in YAML/JSON.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStage parses a stage id. Matching is case-insensitive ("MP" and "mp" both work).
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, id := range stageNames {
		if id == n {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// CanPrecede reports whether a immediately precedes b in Order.
func CanPrecede(a, b Stage) bool {
	return a.Valid() && b.Valid() && b == a+1
}

// DependencyOf returns the stage that must be complete before s can run.
// DP has no dependency and returns false.
func DependencyOf(s Stage) (Stage, bool) {
	if !s.Valid() || s == DP {
		return 0, false
	}
	return s - 1, true
}

// Next returns the stage that depends directly on s, or false for TP.
func Next(s Stage) (Stage, bool) {
	if !s.Valid() || s == TP {
		return 0, false
	}
	return s + 1, true
}

// Downstream returns every stage strictly after s, in order.
func Downstream(s Stage) []Stage {
	if !s.Valid() {
		return nil
	}
	out := make([]Stage, 0, TP-s)
	for d := s + 1; d <= TP; d++ {
		out = append(out, d)
	}
	return out
}
