package tissuemc

import "math"

// Position is a point in tissue coordinates (mm); z grows into the tissue.
type Position struct {
	X, Y, Z Real
}

// Add translates a Position by s along d.
func (p Position) Add(d Direction, s Real) Position {
	return Position{p.X + d.Ux*s, p.Y + d.Uy*s, p.Z + d.Uz*s}
}

// Sub returns the vector from q to p.
func (p Position) Sub(q Position) Direction {
	return Direction{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Rho is the radial distance from the z axis.
func (p Position) Rho() Real { return math.Hypot(p.X, p.Y) }
