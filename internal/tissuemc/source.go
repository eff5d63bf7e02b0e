package tissuemc

import (
	"math"
)

// Source launches photons; one member of a closed set.
type Source interface {
	SourceType() string
	// NextPhoton samples a launch position and unit direction.
	NextPhoton(rng RandomSource) (Position, Direction)
	Validate() error
	sealed()
}

// DirectionalPointSource emits every photon from one point along one direction.
type DirectionalPointSource struct {
	PointLocation Position  `json:"PointLocation"`
	Direction     Direction `json:"Direction"`
}

// NewDirectionalPointSource normalizes the direction.
func NewDirectionalPointSource(p Position, d Direction) *DirectionalPointSource {
	return &DirectionalPointSource{PointLocation: p, Direction: d.Norm()}
}

func (s *DirectionalPointSource) SourceType() string { return "DirectionalPoint" }
func (s *DirectionalPointSource) sealed()            {}

func (s *DirectionalPointSource) NextPhoton(RandomSource) (Position, Direction) {
	return s.PointLocation, s.Direction
}

func (s *DirectionalPointSource) Validate() error {
	if s.Direction.Len() < epsDirection {
		return invalid("SourceInput.Direction", "direction must be non-zero")
	}
	s.Direction = s.Direction.Norm()
	return nil
}

// IsotropicPointSource emits uniformly over 4π from one point.
type IsotropicPointSource struct {
	PointLocation Position `json:"PointLocation"`
}

func (s *IsotropicPointSource) SourceType() string { return "IsotropicPoint" }
func (s *IsotropicPointSource) sealed()            {}
func (s *IsotropicPointSource) Validate() error    { return nil }

func (s *IsotropicPointSource) NextPhoton(rng RandomSource) (Position, Direction) {
	return s.PointLocation, isotropicDirection(rng)
}

// FlatCircularSource is a collimated beam with uniform profile over a disk
// of Radius centred at Center, normal to z.
type FlatCircularSource struct {
	Center    Position  `json:"Center"`
	Radius    Real      `json:"Radius"`
	Direction Direction `json:"Direction"`
}

func (s *FlatCircularSource) SourceType() string { return "FlatCircular" }
func (s *FlatCircularSource) sealed()            {}

func (s *FlatCircularSource) NextPhoton(rng RandomSource) (Position, Direction) {
	r := s.Radius * math.Sqrt(rng.NextDouble())
	sinp, cosp := math.Sincos(2 * math.Pi * rng.NextDouble())
	return Position{s.Center.X + r*cosp, s.Center.Y + r*sinp, s.Center.Z}, s.Direction
}

func (s *FlatCircularSource) Validate() error {
	if !(s.Radius > 0) || !isFinite(s.Radius) {
		return invalid("SourceInput.Radius", "radius must be > 0, got %g", s.Radius)
	}
	if s.Direction.Len() < epsDirection {
		return invalid("SourceInput.Direction", "direction must be non-zero")
	}
	s.Direction = s.Direction.Norm()
	return nil
}

func isotropicDirection(rng RandomSource) Direction {
	cost := 2*rng.NextDouble() - 1
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	sinp, cosp := math.Sincos(2 * math.Pi * rng.NextDouble())
	return Direction{sint * cosp, sint * sinp, cost}
}

// sourcePosition is the location the source validation checks against the tissue.
func sourcePosition(s Source) Position {
	switch v := s.(type) {
	case *DirectionalPointSource:
		return v.PointLocation
	case *IsotropicPointSource:
		return v.PointLocation
	case *FlatCircularSource:
		return v.Center
	}
	return Position{}
}
