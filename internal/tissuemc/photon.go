package tissuemc

import (
	"math"
)

// AbsorptionWeightingType selects how absorption reduces photon weight.
type AbsorptionWeightingType string

const (
	Analog     AbsorptionWeightingType = "Analog"
	Discrete   AbsorptionWeightingType = "Discrete"
	Continuous AbsorptionWeightingType = "Continuous"
)

// historySink receives everything a photon history produces.
type historySink interface {
	// deposit of absorbed weight at p in region.
	deposit(p Position, w Real, region int)
	// surface event: a photon data point crossing a surface virtual boundary.
	surface(dp *PhotonDataPoint, ci CollisionInfo)
}

// Photon is the mutable state of one history.
type Photon struct {
	DP                 PhotonDataPoint
	CurrentRegionIndex int
	CollisionInfo      CollisionInfo
	// S is the length of the current step (mm).
	S Real
	// SLeft is the unused free path, in mean free paths, carried across a boundary.
	SLeft Real

	numericGuards int
}

// TotalPathLength travelled so far.
func (p *Photon) TotalPathLength() Real { return p.CollisionInfo.TotalPathLength() }

// transport holds the per-simulation constants of the random walk.
type transport struct {
	tissue            Tissue
	ops               []OpticalProperties
	phase             []PhaseFunction
	awt               AbsorptionWeightingType
	rouletteThreshold Real
}

func newTransport(tissue Tissue, awt AbsorptionWeightingType, pft PhaseFunctionType, rouletteThreshold Real) (*transport, error) {
	regions := tissue.Regions()
	tr := &transport{
		tissue:            tissue,
		ops:               make([]OpticalProperties, len(regions)),
		phase:             make([]PhaseFunction, len(regions)),
		awt:               awt,
		rouletteThreshold: rouletteThreshold,
	}
	for i, r := range regions {
		tr.ops[i] = r.OpticalProperties()
		pf, err := newPhaseFunction(pft, tr.ops[i].G)
		if err != nil {
			return nil, err
		}
		tr.phase[i] = pf
	}
	return tr, nil
}

// launch creates a photon from src. A photon entering the tissue surface from
// the ambient medium loses its specular part, which is sent to sink.
func (tr *transport) launch(src Source, rng RandomSource, sink historySink) *Photon {
	pos, dir := src.NextPhoton(rng)
	p := &Photon{
		DP:            PhotonDataPoint{Position: pos, Direction: dir, Weight: 1, StateFlag: Alive},
		CollisionInfo: newCollisionInfo(len(tr.ops)),
	}
	cur := tr.tissue.RegionIndexDirected(pos, dir)
	p.CurrentRegionIndex = cur
	behind := tr.tissue.RegionIndexDirected(pos, dir.Mul(-1))
	if behind != cur && tr.tissue.AmbientSide(behind) < 0 && tr.tissue.AmbientSide(cur) == 0 {
		n0, n1 := tr.ops[behind].N, tr.ops[cur].N
		normal := tr.tissue.SurfaceNormal(pos, behind, cur)
		r, _ := fresnel(n0, n1, math.Abs(dir.Dot(normal)))
		if r > 0 {
			sink.surface(&PhotonDataPoint{
				Position:  pos,
				Direction: reflect3(dir, normal),
				Weight:    r,
				StateFlag: PseudoSpecularTissueBoundary,
			}, nil)
			p.DP.Weight = 1 - r
		}
		if n0 != n1 {
			if t, ok := refract3(dir, normal, n0/n1); ok {
				p.DP.Direction = t
			}
		}
		if p.DP.Weight <= 0 {
			p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(Absorbed)
		}
	}
	// started outside the turbid medium, e.g. an isotropic source on the surface
	switch tr.tissue.AmbientSide(cur) {
	case -1:
		p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(PseudoReflectedTissueBoundary)
	case 1:
		p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(PseudoTransmittedTissueBoundary)
	}
	return p
}

// trace runs the random walk until the photon dies and dispatches its exit state.
func (tr *transport) trace(p *Photon, rng RandomSource, sink historySink) {
	for p.DP.StateFlag.IsAlive() {
		tr.step(p, rng, sink)
	}
	if p.DP.StateFlag.ExitedTop() || p.DP.StateFlag.ExitedBottom() {
		sink.surface(&p.DP, p.CollisionInfo)
	}
}

// step performs one free flight and the interaction that ends it.
func (tr *transport) step(p *Photon, rng RandomSource, sink historySink) {
	cur := p.CurrentRegionIndex
	op := tr.ops[cur]
	// continuous weighting walks with the scattering coefficient only
	mut := op.Mut()
	if tr.awt == Continuous {
		mut = op.Mus
	}
	p.SetStepSize(mut, rng)
	dist, neighbor := tr.tissue.DistanceToBoundary(p.DP.Position, p.DP.Direction, cur)
	if math.IsInf(p.S, 1) && math.IsInf(dist, 1) {
		// never interacts and never leaves
		p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(KilledOverMaximumPathLength)
		return
	}
	hitBoundary := p.Move(dist, mut, op.N)
	if tr.awt == Continuous {
		p.absorbContinuous(op.Mua, sink)
	}
	if hitBoundary {
		tr.crossRegionOrReflect(p, neighbor, rng)
	} else {
		tr.absorb(p, op, rng, sink)
		if p.DP.StateFlag.IsAlive() {
			p.DP.Direction = tr.phase[cur].ScatterDirection(p.DP.Direction, rng)
		}
	}
	p.testWeightAndDistance(rng, tr.rouletteThreshold)
}

// SetStepSize samples a new free path, or consumes the one left over from a
// boundary crossing.
func (p *Photon) SetStepSize(mut Real, rng RandomSource) {
	if mut <= 0 {
		p.S = math.Inf(1)
		p.SLeft = 0
		return
	}
	if p.SLeft == 0 {
		p.S = -math.Log(openUniform(rng)) / mut
		return
	}
	p.S = p.SLeft / mut
	p.SLeft = 0
}

// Move advances the photon by S, or to the boundary when it is closer.
// It reports whether the boundary was reached.
func (p *Photon) Move(distanceToBoundary, mut, n Real) bool {
	hit := false
	if p.S >= distanceToBoundary {
		hit = true
		if !math.IsInf(p.S, 1) {
			p.SLeft = (p.S - distanceToBoundary) * mut
		}
		p.S = distanceToBoundary
	}
	p.DP.Position = p.DP.Position.Add(p.DP.Direction, p.S)
	p.DP.TotalTime += p.S * n / SpeedOfLight
	info := &p.CollisionInfo[p.CurrentRegionIndex]
	info.PathLength += p.S
	if !hit {
		info.NumberOfCollisions++
	}
	return hit
}

// absorbContinuous attenuates the weight over the last step.
func (p *Photon) absorbContinuous(mua Real, sink historySink) {
	if mua == 0 || p.S == 0 {
		return
	}
	w := p.DP.Weight
	p.DP.Weight = w * math.Exp(-mua*p.S)
	sink.deposit(p.DP.Position, w-p.DP.Weight, p.CurrentRegionIndex)
}

// absorb applies the collision part of the absorption weighting scheme.
func (tr *transport) absorb(p *Photon, op OpticalProperties, rng RandomSource, sink historySink) {
	switch tr.awt {
	case Analog:
		if rng.NextDouble() > op.Albedo() {
			sink.deposit(p.DP.Position, p.DP.Weight, p.CurrentRegionIndex)
			p.DP.Weight = 0
			p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(Absorbed)
		}
	case Discrete:
		dw := p.DP.Weight * op.Mua / op.Mut()
		p.DP.Weight -= dw
		sink.deposit(p.DP.Position, dw, p.CurrentRegionIndex)
	}
}

// crossRegionOrReflect applies the Fresnel test at the boundary with neighbor.
func (tr *transport) crossRegionOrReflect(p *Photon, neighbor int, rng RandomSource) {
	cur := p.CurrentRegionIndex
	if neighbor == cur {
		return
	}
	n1, n2 := tr.ops[cur].N, tr.ops[neighbor].N
	normal := tr.tissue.SurfaceNormal(p.DP.Position, cur, neighbor)
	d := p.DP.Direction
	r, _ := fresnel(n1, n2, math.Abs(d.Dot(normal)))
	if r >= 1 || (r > 0 && rng.NextDouble() <= r) {
		p.DP.Direction = reflect3(d, normal).Norm()
		return
	}
	if n1 != n2 {
		t, ok := refract3(d, normal, n1/n2)
		if !ok {
			p.DP.Direction = reflect3(d, normal).Norm()
			return
		}
		p.DP.Direction = t
	}
	p.CurrentRegionIndex = neighbor
	switch tr.tissue.AmbientSide(neighbor) {
	case -1:
		p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(PseudoReflectedTissueBoundary)
	case 1:
		p.DP.StateFlag = p.DP.StateFlag.Without(Alive).With(PseudoTransmittedTissueBoundary)
	}
}

// testWeightAndDistance applies the numeric guard, Russian roulette and the
// path length and collision limits.
func (p *Photon) testWeightAndDistance(rng RandomSource, threshold Real) {
	s := p.DP.StateFlag
	if !s.IsAlive() {
		return
	}
	if !isFinite(p.DP.Weight) || p.DP.Weight < 0 {
		p.numericGuards++
		p.DP.Weight = 0
		p.DP.StateFlag = s.Without(Alive).With(Absorbed)
		return
	}
	if threshold > 0 && p.DP.Weight < threshold {
		if rng.NextDouble() < RouletteChance {
			p.DP.Weight /= RouletteChance
		} else {
			p.DP.Weight = 0
			p.DP.StateFlag = s.Without(Alive).With(KilledRussianRoulette)
			return
		}
	}
	if p.TotalPathLength() >= MaxPhotonPathLength {
		p.DP.StateFlag = s.Without(Alive).With(KilledOverMaximumPathLength)
		return
	}
	if p.CollisionInfo.TotalCollisions() >= MaxPhotonCollisions {
		p.DP.StateFlag = s.Without(Alive).With(KilledOverMaximumCollisions)
	}
}
