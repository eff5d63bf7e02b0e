package tissuemc

import (
	"fmt"
	"math"
)

// DerivativeType selects what a perturbation detector tallies.
type DerivativeType int

const (
	// NoDerivative tallies the perturbed weight itself.
	NoDerivative DerivativeType = iota
	DerivativeMua
	DerivativeMus
)

// perturbation re-weights a recorded history for new optical properties in
// selected regions.
type perturbation struct {
	reference []OpticalProperties
	perturbed []OpticalProperties
	regions   []int
}

func newPerturbation(field string, reference, perturbed []OpticalProperties, regions []int) (perturbation, error) {
	if len(perturbed) != len(reference) {
		return perturbation{}, invalid(field+".PerturbedOps", "need %d optical properties, one per tissue region, got %d", len(reference), len(perturbed))
	}
	for i, op := range perturbed {
		if err := op.validate(fmt.Sprintf("%s.PerturbedOps[%d]", field, i)); err != nil {
			return perturbation{}, err
		}
	}
	if len(regions) == 0 {
		return perturbation{}, invalid(field+".PerturbedRegionsIndices", "at least one region index is required")
	}
	for _, r := range regions {
		if r < 0 || r >= len(reference) {
			return perturbation{}, invalid(field+".PerturbedRegionsIndices", "region index %d out of range [0,%d)", r, len(reference))
		}
	}
	return perturbation{reference: reference, perturbed: perturbed, regions: regions}, nil
}

// weightFactor is ∏ (μs'/μs)^c · exp(-(μt'-μt)·l) over the perturbed regions.
func (p *perturbation) weightFactor(ci CollisionInfo) Real {
	f := Real(1)
	for _, r := range p.regions {
		ref, pert := p.reference[r], p.perturbed[r]
		c := Real(ci[r].NumberOfCollisions)
		l := ci[r].PathLength
		if c > 0 {
			if ref.Mus == 0 {
				return 0
			}
			f *= math.Pow(pert.Mus/ref.Mus, c)
		}
		f *= math.Exp(-(pert.Mut() - ref.Mut()) * l)
	}
	return f
}

// derivativeFactor is the logarithmic derivative of the weight factor.
func (p *perturbation) derivativeFactor(ci CollisionInfo, kind DerivativeType) Real {
	var s Real
	for _, r := range p.regions {
		l := ci[r].PathLength
		switch kind {
		case DerivativeMua:
			s -= l
		case DerivativeMus:
			if c := Real(ci[r].NumberOfCollisions); c > 0 && p.perturbed[r].Mus > 0 {
				s += c / p.perturbed[r].Mus
			}
			s -= l
		}
	}
	return s
}

// PerturbationDetector covers pMCROfRho, pMCROfRhoAndTime and the dMC ρ
// derivatives. Time is unused when Time.Count is zero.
type PerturbationDetector struct {
	detectorBase
	Rho, Time  DoubleRange
	Derivative DerivativeType

	pert perturbation
}

func newPerturbationDetector(name, tallyType string, secondMoment bool, rho, time DoubleRange, kind DerivativeType, pert perturbation) *PerturbationDetector {
	axes := []Axis{rangeAxis("Rho", rho)}
	dims := []int{rho.Bins()}
	factors := [][]Real{ringArea(rho)}
	if time.Count > 0 {
		axes = append(axes, rangeAxis("Time", time))
		dims = append(dims, time.Bins())
		factors = append(factors, constant(time.Bins(), time.Delta()))
	}
	d := &PerturbationDetector{
		detectorBase: newDetectorBase(name, tallyType, PMCDiffuseReflectanceVB, secondMoment, axes, dims),
		Rho:          rho,
		Time:         time,
		Derivative:   kind,
		pert:         pert,
	}
	d.setNorm(factors...)
	return d
}

func (d *PerturbationDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *PerturbationDetector) TallySingle(dp *PhotonDataPoint, ci CollisionInfo) {
	if len(ci) != len(d.pert.reference) {
		d.acc.OutOfRange++
		return
	}
	w := dp.Weight * d.pert.weightFactor(ci)
	if d.Derivative != NoDerivative {
		w *= d.pert.derivativeFactor(ci, d.Derivative)
	}
	i := d.Rho.BinIndex(dp.Position.Rho())
	if d.Time.Count > 0 {
		i = d.index(i, d.Time.BinIndex(dp.TotalTime))
	}
	d.tally(i, w)
}
