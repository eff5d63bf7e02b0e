package tissuemc

import (
	"fmt"
	"math"
)

// OpticalProperties of one tissue region. Values are in 1/mm.
type OpticalProperties struct {
	Mua Real `json:"Mua"`
	Mus Real `json:"Mus"`
	G   Real `json:"G"`
	N   Real `json:"N"`
}

// NewOpticalPropertiesFromMusp converts a reduced scattering coefficient.
func NewOpticalPropertiesFromMusp(mua, musp, g, n Real) OpticalProperties {
	mus := musp
	if g != 1 {
		mus = musp / (1 - g)
	}
	return OpticalProperties{Mua: mua, Mus: mus, G: g, N: n}
}

// Mut is the total interaction coefficient.
func (op OpticalProperties) Mut() Real { return op.Mua + op.Mus }

// Musp is the reduced scattering coefficient.
func (op OpticalProperties) Musp() Real { return op.Mus * (1 - op.G) }

// Albedo is the single scattering survival probability.
func (op OpticalProperties) Albedo() Real {
	mut := op.Mut()
	if mut == 0 {
		return 0
	}
	return op.Mus / mut
}

func (op OpticalProperties) validate(field string) error {
	for _, v := range []Real{op.Mua, op.Mus, op.G, op.N} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(field, "non-finite optical property %+v", op)
		}
	}
	if op.Mua < 0 {
		return invalid(field, "mua must be >= 0, got %g", op.Mua)
	}
	if op.Mus < 0 {
		return invalid(field, "mus must be >= 0, got %g", op.Mus)
	}
	if op.G < -1 || op.G > 1 {
		return invalid(field, "g must be in [-1,1], got %g", op.G)
	}
	if op.N <= 0 {
		return invalid(field, "n must be > 0, got %g", op.N)
	}
	return nil
}

func (op OpticalProperties) String() string {
	return fmt.Sprintf("{mua=%g mus=%g g=%g n=%g mus'=%g}", op.Mua, op.Mus, op.G, op.N, op.Musp())
}
