package tissuemc

import (
	"math"
)

// PhaseFunctionType selects how scattering directions are sampled.
type PhaseFunctionType string

const (
	HenyeyGreenstein PhaseFunctionType = "HenyeyGreenstein"
	Bidirectional    PhaseFunctionType = "Bidirectional"
)

// PhaseFunction samples a new direction after a scattering event.
type PhaseFunction interface {
	ScatterDirection(d Direction, rng RandomSource) Direction
}

// HenyeyGreensteinPhaseFunction samples the HG distribution with anisotropy G.
type HenyeyGreensteinPhaseFunction struct {
	G Real
}

// SampleCosTheta inverts the HG cumulative distribution.
func (pf HenyeyGreensteinPhaseFunction) SampleCosTheta(rng RandomSource) Real {
	g := pf.G
	xi := rng.NextDouble()
	if math.Abs(g) < isotropicG {
		return 2*xi - 1
	}
	temp := (1 - g*g) / (1 - g + 2*g*xi)
	return clamp((1+g*g-temp*temp)/(2*g), -1, 1)
}

func (pf HenyeyGreensteinPhaseFunction) ScatterDirection(d Direction, rng RandomSource) Direction {
	cost := pf.SampleCosTheta(rng)
	phi := 2 * math.Pi * rng.NextDouble()
	return rotateDirection(d, cost, phi)
}

// BidirectionalPhaseFunction scatters only forward (probability (1+G)/2) or backward.
type BidirectionalPhaseFunction struct {
	G Real
}

func (pf BidirectionalPhaseFunction) ScatterDirection(d Direction, rng RandomSource) Direction {
	if rng.NextDouble() < (1+pf.G)/2 {
		return d
	}
	return d.Mul(-1)
}

// rotateDirection deflects d by polar angle acos(cost) and azimuth phi about itself.
func rotateDirection(d Direction, cost, phi Real) Direction {
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	sinp, cosp := math.Sincos(phi)
	var out Direction
	if math.Abs(d.Uz) > 1-epsDirection {
		out = Direction{sint * cosp, sint * sinp, cost * sign(d.Uz)}
	} else {
		temp := math.Sqrt(1 - d.Uz*d.Uz)
		out = Direction{
			sint*(d.Ux*d.Uz*cosp-d.Uy*sinp)/temp + d.Ux*cost,
			sint*(d.Uy*d.Uz*cosp+d.Ux*sinp)/temp + d.Uy*cost,
			-sint*cosp*temp + d.Uz*cost,
		}
	}
	// keep direction unit-length
	if l2 := out.Dot(out); l2 > 0 {
		out = out.Mul(1 / math.Sqrt(l2))
	}
	return out
}

func newPhaseFunction(kind PhaseFunctionType, g Real) (PhaseFunction, error) {
	switch kind {
	case HenyeyGreenstein, "":
		return HenyeyGreensteinPhaseFunction{G: g}, nil
	case Bidirectional:
		return BidirectionalPhaseFunction{G: g}, nil
	}
	return nil, invalid("Options.PhaseFunctionType", "unknown phase function %q", string(kind))
}
