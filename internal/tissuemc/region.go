package tissuemc

import (
	"math"
)

// Region is one member of the closed set of tissue region shapes.
type Region interface {
	RegionType() string
	OpticalProperties() OpticalProperties
	ContainsPosition(p Position) bool
	// RayIntersectBoundary returns the distance along d from p to the region
	// surface. inside selects the exit (true) or entry (false) crossing.
	RayIntersectBoundary(p Position, d Direction, inside bool) (Real, bool)
	// SurfaceNormal is the outward unit normal at a surface point.
	SurfaceNormal(p Position) Direction
	sealed()
}

// LayerRegion is an infinite slab ZRange.Start <= z < ZRange.Stop.
type LayerRegion struct {
	ZRange   DoubleRange       `json:"ZRange"`
	RegionOP OpticalProperties `json:"RegionOP"`
}

// NewLayerRegion builds a slab between z0 and z1.
func NewLayerRegion(z0, z1 Real, op OpticalProperties) *LayerRegion {
	return &LayerRegion{ZRange: NewDoubleRange(z0, z1, 2), RegionOP: op}
}

func (l *LayerRegion) RegionType() string                   { return "Layer" }
func (l *LayerRegion) OpticalProperties() OpticalProperties { return l.RegionOP }
func (l *LayerRegion) sealed()                              {}

func (l *LayerRegion) ContainsPosition(p Position) bool {
	return p.Z >= l.ZRange.Start && p.Z < l.ZRange.Stop
}

func (l *LayerRegion) RayIntersectBoundary(p Position, d Direction, inside bool) (Real, bool) {
	if math.Abs(d.Uz) < epsDirection {
		return math.Inf(1), false
	}
	var t Real
	switch {
	case inside && d.Uz > 0, !inside && d.Uz < 0:
		t = (l.ZRange.Stop - p.Z) / d.Uz
	default:
		t = (l.ZRange.Start - p.Z) / d.Uz
	}
	if t < 0 || !isFinite(t) {
		return math.Inf(1), false
	}
	return t, true
}

func (l *LayerRegion) SurfaceNormal(p Position) Direction {
	if math.Abs(p.Z-l.ZRange.Start) < math.Abs(p.Z-l.ZRange.Stop) {
		return DirectionAlongNegativeZ
	}
	return DirectionAlongPositiveZ
}

// VoxelRegion is an axis aligned box.
type VoxelRegion struct {
	X        DoubleRange       `json:"X"`
	Y        DoubleRange       `json:"Y"`
	Z        DoubleRange       `json:"Z"`
	RegionOP OpticalProperties `json:"RegionOP"`
}

func (v *VoxelRegion) RegionType() string                   { return "Voxel" }
func (v *VoxelRegion) OpticalProperties() OpticalProperties { return v.RegionOP }
func (v *VoxelRegion) sealed()                              {}

func (v *VoxelRegion) ContainsPosition(p Position) bool {
	return p.X >= v.X.Start && p.X <= v.X.Stop &&
		p.Y >= v.Y.Start && p.Y <= v.Y.Stop &&
		p.Z >= v.Z.Start && p.Z <= v.Z.Stop
}

// slab test; returns the entry and exit distances of the line through p.
func (v *VoxelRegion) slabs(p Position, d Direction) (tNear, tFar Real, ok bool) {
	tNear, tFar = math.Inf(-1), math.Inf(1)
	axis := func(o, u, lo, hi Real) bool {
		if math.Abs(u) < epsDirection {
			return o >= lo && o <= hi
		}
		t1 := (lo - o) / u
		t2 := (hi - o) / u
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tNear {
			tNear = t1
		}
		if t2 < tFar {
			tFar = t2
		}
		return true
	}
	if !axis(p.X, d.Ux, v.X.Start, v.X.Stop) ||
		!axis(p.Y, d.Uy, v.Y.Start, v.Y.Stop) ||
		!axis(p.Z, d.Uz, v.Z.Start, v.Z.Stop) {
		return 0, 0, false
	}
	if tNear > tFar {
		return 0, 0, false
	}
	return tNear, tFar, true
}

func (v *VoxelRegion) RayIntersectBoundary(p Position, d Direction, inside bool) (Real, bool) {
	tNear, tFar, ok := v.slabs(p, d)
	if !ok {
		return math.Inf(1), false
	}
	if inside {
		if tFar < 0 {
			return math.Inf(1), false
		}
		return math.Max(tFar, 0), true
	}
	if tNear <= epsDist || tFar-tNear <= epsDist {
		return math.Inf(1), false
	}
	return tNear, true
}

func (v *VoxelRegion) SurfaceNormal(p Position) Direction {
	type face struct {
		dist Real
		n    Direction
	}
	faces := [6]face{
		{math.Abs(p.X - v.X.Start), Direction{-1, 0, 0}},
		{math.Abs(p.X - v.X.Stop), Direction{1, 0, 0}},
		{math.Abs(p.Y - v.Y.Start), Direction{0, -1, 0}},
		{math.Abs(p.Y - v.Y.Stop), Direction{0, 1, 0}},
		{math.Abs(p.Z - v.Z.Start), Direction{0, 0, -1}},
		{math.Abs(p.Z - v.Z.Stop), Direction{0, 0, 1}},
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.dist < best.dist {
			best = f
		}
	}
	return best.n
}

// EllipsoidRegion is an axis aligned ellipsoid with semi-axes Dx, Dy, Dz.
type EllipsoidRegion struct {
	Center   Position          `json:"Center"`
	Dx       Real              `json:"Dx"`
	Dy       Real              `json:"Dy"`
	Dz       Real              `json:"Dz"`
	RegionOP OpticalProperties `json:"RegionOP"`
}

func (e *EllipsoidRegion) RegionType() string                   { return "Ellipsoid" }
func (e *EllipsoidRegion) OpticalProperties() OpticalProperties { return e.RegionOP }
func (e *EllipsoidRegion) sealed()                              {}

func (e *EllipsoidRegion) ContainsPosition(p Position) bool {
	x := (p.X - e.Center.X) / e.Dx
	y := (p.Y - e.Center.Y) / e.Dy
	z := (p.Z - e.Center.Z) / e.Dz
	return x*x+y*y+z*z <= 1
}

// Ray/ellipsoid intersection via unit-sphere transform.
// Unit-sphere coords: s = (x - C) / D. Solve ||s_o + t s_d||^2 = 1.
func (e *EllipsoidRegion) RayIntersectBoundary(p Position, d Direction, inside bool) (Real, bool) {
	os := Direction{(p.X - e.Center.X) / e.Dx, (p.Y - e.Center.Y) / e.Dy, (p.Z - e.Center.Z) / e.Dz}
	ds := Direction{d.Ux / e.Dx, d.Uy / e.Dy, d.Uz / e.Dz}
	a := ds.Dot(ds)
	b := 2 * os.Dot(ds)
	c := os.Dot(os) - 1
	disc := b*b - 4*a*c
	if a == 0 || disc < 0 {
		return math.Inf(1), false
	}
	sqrtD := math.Sqrt(disc)
	// numerically stable roots
	q := -0.5 * (b + sign(b)*sqrtD)
	t0, t1 := q/a, c/q
	if q == 0 {
		t0, t1 = 0, 0
	}
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	if inside {
		if t1 < 0 {
			return math.Inf(1), false
		}
		return math.Max(t1, 0), true
	}
	if t0 <= epsDist || t1-t0 <= epsDist {
		return math.Inf(1), false
	}
	return t0, true
}

func (e *EllipsoidRegion) SurfaceNormal(p Position) Direction {
	return Direction{
		(p.X - e.Center.X) / (e.Dx * e.Dx),
		(p.Y - e.Center.Y) / (e.Dy * e.Dy),
		(p.Z - e.Center.Z) / (e.Dz * e.Dz),
	}.Norm()
}

// bounds returns the axis aligned extent of an inclusion region.
func inclusionBounds(r Region) (lo, hi Position) {
	switch v := r.(type) {
	case *VoxelRegion:
		return Position{v.X.Start, v.Y.Start, v.Z.Start}, Position{v.X.Stop, v.Y.Stop, v.Z.Stop}
	case *EllipsoidRegion:
		return Position{v.Center.X - v.Dx, v.Center.Y - v.Dy, v.Center.Z - v.Dz},
			Position{v.Center.X + v.Dx, v.Center.Y + v.Dy, v.Center.Z + v.Dz}
	case *LayerRegion:
		return Position{math.Inf(-1), math.Inf(-1), v.ZRange.Start}, Position{math.Inf(1), math.Inf(1), v.ZRange.Stop}
	}
	return Position{}, Position{}
}
