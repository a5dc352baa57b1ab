package model

import "fmt"

// Stage is a 1-based construction phase index.
type Stage int

// Valid reports whether s is a usable stage number.
func (s Stage) Valid() bool {
	return s >= 1
}

// Position is a world coordinate. Entities occupying the same exact
// position share a spatial bucket.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pos is a shorthand Position constructor.
func Pos(x, y float64) Position {
	return Position{X: x, Y: y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Direction is a 16-way orientation. North is 0 and values increase
// clockwise; the four cardinal directions are multiples of 4.
type Direction uint8

const (
	North Direction = 0
	East  Direction = 4
	South Direction = 8
	West  Direction = 12

	directionCount = 16
)

// Opposite returns the direction rotated by 180 degrees.
func (d Direction) Opposite() Direction {
	return (d + directionCount/2) % directionCount
}

var directionNames = map[Direction]string{North: "north", East: "east", South: "south", West: "west"}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// ParseDirection parses a cardinal direction name. An empty string is north.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return North, nil
	}
	for d, name := range directionNames {
		if name == s {
			return d, nil
		}
	}
	return North, fmt.Errorf("unknown direction %q: must be north, east, south or west", s)
}

// Dir returns a pointer to d, for optional orientation arguments.
func Dir(d Direction) *Direction {
	return &d
}

// Handle is an opaque reference to a live-world object. A handle may go
// stale at any time; callers treat an invalid handle as absent.
//
// Implementations must be comparable (typically a pointer type): handles
// are map keys in the identity registry and are compared with == when
// detecting self-loops.
type Handle interface {
	Valid() bool
}

// IsLive reports whether h is non-nil and still valid.
func IsLive(h Handle) bool {
	return h != nil && h.Valid()
}
