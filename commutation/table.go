// Package commutation implements an open-loop six-step commutation engine:
// a precomputed duty table and a tick-driven sequencer that applies it to
// three complementary PWM channels.
package commutation

import "errors"

// StepCount is the number of commutation steps in one electrical cycle
const StepCount = 6

var (
	ErrZeroMaxDuty    = errors.New("commutation: max duty must be positive")
	ErrUnknownPattern = errors.New("commutation: unknown pattern")
)

// Duty is a raw PWM compare value in [0, max duty]
type Duty uint32

// Step holds the duty of phases u, v and w for one commutation step
type Step [3]Duty

// Table is one full electrical cycle, indexed 0..5
type Table [StepCount]Step

// Pattern selects the shape of the commutation table
type Pattern uint8

const (
	// PatternTwoPhase drives one phase high, one low and floats the third
	PatternTwoPhase Pattern = iota
	// PatternTrapezoidal drives all three phases on a high/mid/low trapezoid
	PatternTrapezoidal
	patternCount
)

var patternNames = [patternCount]string{
	PatternTwoPhase:    "two_phase_high_low",
	PatternTrapezoidal: "three_level_trapezoidal",
}

// String returns the configuration name of the pattern
func (p Pattern) String() string {
	if p >= patternCount {
		return "unknown"
	}
	return patternNames[p]
}

// Valid reports whether p is a known pattern
func (p Pattern) Valid() bool {
	return p < patternCount
}

// ParsePattern maps a configuration name to a Pattern
func ParsePattern(name string) (Pattern, error) {
	for i, n := range patternNames {
		if n == name {
			return Pattern(i), nil
		}
	}
	return 0, ErrUnknownPattern
}

// PatternNames returns the configuration names indexed by Pattern value
func PatternNames() []string {
	names := make([]string, patternCount)
	copy(names, patternNames[:])
	return names
}

// lowDuty is the small fixed duty used for the "low" level. It keeps the
// low-side switch of that phase pulsing instead of floating it.
const lowDuty Duty = 1

// Build computes the commutation table for maxDuty using pattern p.
// The result depends only on its arguments.
func Build(maxDuty Duty, p Pattern) (Table, error) {
	var t Table
	if maxDuty == 0 {
		return t, ErrZeroMaxDuty
	}

	h := maxDuty / 2
	l := lowDuty
	if l > maxDuty {
		l = maxDuty
	}

	switch p {
	case PatternTwoPhase:
		t = Table{
			{0, h, l},
			{l, h, 0},
			{l, 0, h},
			{0, l, h},
			{h, l, 0},
			{h, 0, l},
		}
	case PatternTrapezoidal:
		m := maxDuty / 4
		// Phase u runs h h m l l m; v and w lag by two and four steps.
		wave := [StepCount]Duty{h, h, m, l, l, m}
		for i := range t {
			t[i] = Step{
				wave[i],
				wave[(i+StepCount-2)%StepCount],
				wave[(i+StepCount-4)%StepCount],
			}
		}
	default:
		return t, ErrUnknownPattern
	}
	return t, nil
}
