package tissuemc

import (
	"fmt"
	"math"
)

// Tissue classifies positions into regions and measures distances to region boundaries.
type Tissue interface {
	TissueType() string
	Regions() []Region
	// RegionIndex of the region containing p.
	RegionIndex(p Position) int
	// RegionIndexDirected resolves points lying exactly on a layer boundary to
	// the region that d is about to enter.
	RegionIndexDirected(p Position, d Direction) int
	// DistanceToBoundary along d from p inside region current, and the region
	// on the other side of that boundary.
	DistanceToBoundary(p Position, d Direction, current int) (Real, int)
	// SurfaceNormal of the interface between current and neighbor at p.
	SurfaceNormal(p Position, current, neighbor int) Direction
	// AmbientSide is -1 for the medium above the tissue, +1 below, 0 otherwise.
	AmbientSide(region int) int
	Validate() error
	sealed()
}

// MultiLayerTissue is an ordered stack of slabs. Layer 0 is the ambient
// medium above the tissue, the last layer the ambient medium below.
type MultiLayerTissue struct {
	Layers []*LayerRegion `json:"Layers"`
}

// NewMultiLayerTissue builds a tissue from layer regions ordered by depth.
func NewMultiLayerTissue(layers ...*LayerRegion) *MultiLayerTissue {
	return &MultiLayerTissue{Layers: layers}
}

func (t *MultiLayerTissue) TissueType() string { return "MultiLayer" }
func (t *MultiLayerTissue) sealed()            {}

func (t *MultiLayerTissue) Regions() []Region {
	rs := make([]Region, len(t.Layers))
	for i, l := range t.Layers {
		rs[i] = l
	}
	return rs
}

// top and bottom of the turbid part
func (t *MultiLayerTissue) surface() Real { return t.Layers[1].ZRange.Start }
func (t *MultiLayerTissue) bottom() Real  { return t.Layers[len(t.Layers)-2].ZRange.Stop }

func (t *MultiLayerTissue) RegionIndex(p Position) int {
	last := len(t.Layers) - 1
	if p.Z < t.surface() {
		return 0
	}
	if p.Z >= t.bottom() {
		return last
	}
	for i := 1; i < last; i++ {
		if t.Layers[i].ContainsPosition(p) {
			return i
		}
	}
	return last
}

func (t *MultiLayerTissue) RegionIndexDirected(p Position, d Direction) int {
	i := t.RegionIndex(p)
	// on the upper boundary of layer i and heading up => layer above
	if d.Uz < 0 && i > 0 && p.Z == t.Layers[i].ZRange.Start {
		return i - 1
	}
	return i
}

func (t *MultiLayerTissue) DistanceToBoundary(p Position, d Direction, current int) (Real, int) {
	if current <= 0 || current >= len(t.Layers)-1 || math.Abs(d.Uz) < epsDirection {
		return math.Inf(1), current
	}
	l := t.Layers[current]
	if d.Uz > 0 {
		return math.Max((l.ZRange.Stop-p.Z)/d.Uz, 0), current + 1
	}
	return math.Max((l.ZRange.Start-p.Z)/d.Uz, 0), current - 1
}

func (t *MultiLayerTissue) SurfaceNormal(p Position, current, neighbor int) Direction {
	return DirectionAlongPositiveZ
}

func (t *MultiLayerTissue) AmbientSide(region int) int {
	switch region {
	case 0:
		return -1
	case len(t.Layers) - 1:
		return 1
	}
	return 0
}

func (t *MultiLayerTissue) Validate() error {
	if len(t.Layers) < 3 {
		return invalid("TissueInput.Layers", "need ambient above, at least one tissue layer and ambient below; got %d layers", len(t.Layers))
	}
	for i, l := range t.Layers {
		if l == nil {
			return invalid("TissueInput.Layers", "layer %d is missing", i)
		}
		if err := l.RegionOP.validate(fmt.Sprintf("TissueInput.Layers[%d].RegionOP", i)); err != nil {
			return err
		}
		if i > 0 && i < len(t.Layers)-1 && !(l.ZRange.Start < l.ZRange.Stop) {
			return invalid(fmt.Sprintf("TissueInput.Layers[%d].ZRange", i), "layer must have Start < Stop, got [%g,%g]", l.ZRange.Start, l.ZRange.Stop)
		}
	}
	for i := 0; i+1 < len(t.Layers); i++ {
		if t.Layers[i].ZRange.Stop != t.Layers[i+1].ZRange.Start {
			return invalid(fmt.Sprintf("TissueInput.Layers[%d].ZRange", i+1),
				"layers must be contiguous and ordered by depth: stop %g of layer %d != start %g of layer %d",
				t.Layers[i].ZRange.Stop, i, t.Layers[i+1].ZRange.Start, i+1)
		}
	}
	return nil
}

// SingleInclusionTissue is a multi-layer tissue with one voxel or ellipsoid
// embedded in a single tissue layer. The inclusion has region index len(Layers).
type SingleInclusionTissue struct {
	MultiLayerTissue
	Inclusion Region `json:"Inclusion"`

	layerOfInclusion int
}

// NewSingleInclusionTissue validates that the inclusion lies inside one layer.
func NewSingleInclusionTissue(inclusion Region, layers ...*LayerRegion) (*SingleInclusionTissue, error) {
	t := &SingleInclusionTissue{MultiLayerTissue: MultiLayerTissue{Layers: layers}, Inclusion: inclusion}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *SingleInclusionTissue) TissueType() string { return "SingleInclusion" }

func (t *SingleInclusionTissue) inclusionIndex() int { return len(t.Layers) }

func (t *SingleInclusionTissue) Regions() []Region {
	return append(t.MultiLayerTissue.Regions(), t.Inclusion)
}

func (t *SingleInclusionTissue) RegionIndex(p Position) int {
	if t.Inclusion.ContainsPosition(p) {
		return t.inclusionIndex()
	}
	return t.MultiLayerTissue.RegionIndex(p)
}

func (t *SingleInclusionTissue) RegionIndexDirected(p Position, d Direction) int {
	if t.Inclusion.ContainsPosition(p) {
		// on the surface and leaving => surrounding layer
		if dist, ok := t.Inclusion.RayIntersectBoundary(p, d, true); ok && dist <= epsDist {
			return t.layerOfInclusion
		}
		return t.inclusionIndex()
	}
	return t.MultiLayerTissue.RegionIndexDirected(p, d)
}

func (t *SingleInclusionTissue) DistanceToBoundary(p Position, d Direction, current int) (Real, int) {
	if current == t.inclusionIndex() {
		dist, ok := t.Inclusion.RayIntersectBoundary(p, d, true)
		if !ok {
			return 0, t.layerOfInclusion
		}
		return dist, t.layerOfInclusion
	}
	dist, neighbor := t.MultiLayerTissue.DistanceToBoundary(p, d, current)
	if current == t.layerOfInclusion {
		if din, ok := t.Inclusion.RayIntersectBoundary(p, d, false); ok && din < dist {
			return din, t.inclusionIndex()
		}
	}
	return dist, neighbor
}

func (t *SingleInclusionTissue) SurfaceNormal(p Position, current, neighbor int) Direction {
	if current == t.inclusionIndex() || neighbor == t.inclusionIndex() {
		return t.Inclusion.SurfaceNormal(p)
	}
	return DirectionAlongPositiveZ
}

func (t *SingleInclusionTissue) Validate() error {
	if err := t.MultiLayerTissue.Validate(); err != nil {
		return err
	}
	if t.Inclusion == nil {
		return invalid("TissueInput.Inclusion", "missing inclusion region")
	}
	switch r := t.Inclusion.(type) {
	case *VoxelRegion:
		for _, dr := range []DoubleRange{r.X, r.Y, r.Z} {
			if !(dr.Start < dr.Stop) {
				return invalid("TissueInput.Inclusion", "voxel extents must be increasing, got %+v", dr)
			}
		}
	case *EllipsoidRegion:
		if !(r.Dx > 0 && r.Dy > 0 && r.Dz > 0) {
			return invalid("TissueInput.Inclusion", "ellipsoid semi-axes must be > 0, got (%g,%g,%g)", r.Dx, r.Dy, r.Dz)
		}
	default:
		return invalid("TissueInput.Inclusion", "unsupported inclusion type %s", t.Inclusion.RegionType())
	}
	if err := t.Inclusion.OpticalProperties().validate("TissueInput.Inclusion.RegionOP"); err != nil {
		return err
	}
	lo, hi := inclusionBounds(t.Inclusion)
	t.layerOfInclusion = 0
	for i := 1; i < len(t.Layers)-1; i++ {
		l := t.Layers[i].ZRange
		if lo.Z > l.Start && hi.Z < l.Stop {
			t.layerOfInclusion = i
			break
		}
	}
	if t.layerOfInclusion == 0 {
		return invalid("TissueInput.Inclusion", "inclusion z extent [%g,%g] must lie strictly inside one tissue layer", lo.Z, hi.Z)
	}
	return nil
}
