package tissuemc

import "math"

// Direction is a unit vector of propagation (ux, uy, uz).
type Direction struct {
	Ux, Uy, Uz Real
}

// Vector functions
func (a Direction) Add(b Direction) Direction {
	return Direction{a.Ux + b.Ux, a.Uy + b.Uy, a.Uz + b.Uz}
}
func (a Direction) Sub(b Direction) Direction {
	return Direction{a.Ux - b.Ux, a.Uy - b.Uy, a.Uz - b.Uz}
}
func (v Direction) Mul(s Real) Direction { return Direction{v.Ux * s, v.Uy * s, v.Uz * s} }

// Dot returns the dot product between two directions.
func (a Direction) Dot(b Direction) Real {
	return a.Ux*b.Ux + a.Uy*b.Uy + a.Uz*b.Uz
}

// Len returns the Euclidean length of the vector.
func (v Direction) Len() Real { return math.Sqrt(v.Dot(v)) }

// Norm returns a unit-length version of the vector.
// A (near) zero vector is returned unchanged.
func (v Direction) Norm() Direction {
	l := v.Len()
	if l < epsDirection {
		return v
	}
	return Direction{v.Ux / l, v.Uy / l, v.Uz / l}
}

var (
	DirectionAlongPositiveZ = Direction{0, 0, 1}
	DirectionAlongNegativeZ = Direction{0, 0, -1}
)
