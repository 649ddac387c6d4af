// Package phase provides the traffic light phase value type.
package phase

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidPhase is returned when a phase name cannot be parsed.
var ErrInvalidPhase = errors.New("invalid phase")

// Phase represents the signal shown by a traffic light.
type Phase int

const (
	Red   Phase = iota // Stop (initial phase)
	Green              // Go
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Red:
		return "red"
	case Green:
		return "green"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p == Red || p == Green
}

// MustValid panics if p is not a defined phase.
func (p Phase) MustValid() Phase {
	if !p.Valid() {
		panic(fmt.Sprintf("phase: invalid value %d", int(p)))
	}
	return p
}

// Next returns the phase that follows p.
func (p Phase) Next() Phase {
	switch p.MustValid() {
	case Red:
		return Green
	default:
		return Red
	}
}

// Parse parses a phase name.
func Parse(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return Red, nil
	case "green":
		return Green, nil
	default:
		return Red, errors.Wrapf(ErrInvalidPhase, "%q", s)
	}
}
