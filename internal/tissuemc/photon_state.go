package tissuemc

import "strings"

// PhotonState is a small bit set describing how a photon history ended or
// which virtual boundary a data point belongs to.
type PhotonState uint32

const (
	Alive PhotonState = 1 << iota
	PseudoReflectedTissueBoundary
	PseudoTransmittedTissueBoundary
	PseudoSpecularTissueBoundary
	Absorbed
	KilledRussianRoulette
	KilledOverMaximumPathLength
	KilledOverMaximumCollisions
)

var photonStateNames = []struct {
	s    PhotonState
	name string
}{
	{Alive, "Alive"},
	{PseudoReflectedTissueBoundary, "PseudoReflectedTissueBoundary"},
	{PseudoTransmittedTissueBoundary, "PseudoTransmittedTissueBoundary"},
	{PseudoSpecularTissueBoundary, "PseudoSpecularTissueBoundary"},
	{Absorbed, "Absorbed"},
	{KilledRussianRoulette, "KilledRussianRoulette"},
	{KilledOverMaximumPathLength, "KilledOverMaximumPathLength"},
	{KilledOverMaximumCollisions, "KilledOverMaximumCollisions"},
}

func (s PhotonState) Has(f PhotonState) bool         { return s&f == f }
func (s PhotonState) With(f PhotonState) PhotonState { return s | f }
func (s PhotonState) Without(f PhotonState) PhotonState {
	return s &^ f
}

func (s PhotonState) IsAlive() bool      { return s.Has(Alive) }
func (s PhotonState) ExitedTop() bool    { return s.Has(PseudoReflectedTissueBoundary) }
func (s PhotonState) ExitedBottom() bool { return s.Has(PseudoTransmittedTissueBoundary) }
func (s PhotonState) IsSpecular() bool   { return s.Has(PseudoSpecularTissueBoundary) }
func (s PhotonState) IsKilled() bool {
	return s&(KilledRussianRoulette|KilledOverMaximumPathLength|KilledOverMaximumCollisions) != 0
}

func (s PhotonState) String() string {
	var parts []string
	for _, n := range photonStateNames {
		if s.Has(n.s) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// PhotonDataPoint is the photon state at a tally event.
type PhotonDataPoint struct {
	Position  Position
	Direction Direction
	Weight    Real
	TotalTime Real
	StateFlag PhotonState
}

// SubRegionCollisionInfo accumulates path length and collisions in one region.
type SubRegionCollisionInfo struct {
	PathLength         Real
	NumberOfCollisions int64
}

// CollisionInfo is indexed by tissue region.
type CollisionInfo []SubRegionCollisionInfo

func newCollisionInfo(regions int) CollisionInfo { return make(CollisionInfo, regions) }

// TotalPathLength across all regions.
func (ci CollisionInfo) TotalPathLength() Real {
	var l Real
	for _, r := range ci {
		l += r.PathLength
	}
	return l
}

// TotalCollisions across all regions.
func (ci CollisionInfo) TotalCollisions() int64 {
	var c int64
	for _, r := range ci {
		c += r.NumberOfCollisions
	}
	return c
}

// Clone copies the per-region counters.
func (ci CollisionInfo) Clone() CollisionInfo {
	return append(CollisionInfo(nil), ci...)
}
