package tissuemc

import (
	"errors"
	"math"
	"testing"
)

func threeLayers() *MultiLayerTissue {
	op := OpticalProperties{Mua: 0.01, Mus: 1, G: 0.8, N: 1.4}
	air := OpticalProperties{N: 1}
	return NewMultiLayerTissue(
		NewLayerRegion(-1, 0, air),
		NewLayerRegion(0, 1, op),
		NewLayerRegion(1, 3, op),
		NewLayerRegion(3, 4, air),
	)
}

func TestMultiLayerRegionIndex(t *testing.T) {
	tissue := threeLayers()
	if err := tissue.Validate(); err != nil {
		t.Fatal(err)
	}
	cases := map[Real]int{-5: 0, 0: 1, 0.5: 1, 1: 2, 2.9: 2, 3: 3, 100: 3}
	for z, want := range cases {
		if got := tissue.RegionIndex(Position{Z: z}); got != want {
			t.Fatalf("RegionIndex(z=%g) = %d, want %d", z, got, want)
		}
	}
}

func TestMultiLayerBoundaryTieBreak(t *testing.T) {
	tissue := threeLayers()
	p := Position{Z: 1}
	if got := tissue.RegionIndexDirected(p, DirectionAlongPositiveZ); got != 2 {
		t.Fatalf("heading down from z=1 should enter layer 2, got %d", got)
	}
	if got := tissue.RegionIndexDirected(p, DirectionAlongNegativeZ); got != 1 {
		t.Fatalf("heading up from z=1 should enter layer 1, got %d", got)
	}
	if got := tissue.RegionIndexDirected(Position{}, DirectionAlongNegativeZ); got != 0 {
		t.Fatalf("heading up from the surface should be ambient, got %d", got)
	}
}

func TestMultiLayerDistanceToBoundary(t *testing.T) {
	tissue := threeLayers()
	d := Direction{0, 0.6, 0.8}
	dist, next := tissue.DistanceToBoundary(Position{Z: 0.2}, d, 1)
	if !nearly(dist, 1.0, 1e-12) || next != 2 {
		t.Fatalf("down: dist=%g next=%d", dist, next)
	}
	dist, next = tissue.DistanceToBoundary(Position{Z: 2}, Direction{0, 0, -1}, 2)
	if !nearly(dist, 1, 1e-12) || next != 1 {
		t.Fatalf("up: dist=%g next=%d", dist, next)
	}
	dist, _ = tissue.DistanceToBoundary(Position{Z: 2}, Direction{1, 0, 0}, 2)
	if !math.IsInf(dist, 1) {
		t.Fatalf("horizontal direction should never reach a layer boundary, got %g", dist)
	}
}

func TestMultiLayerValidateRejectsGaps(t *testing.T) {
	op := OpticalProperties{Mua: 0.01, Mus: 1, G: 0.8, N: 1.4}
	tissue := NewMultiLayerTissue(
		NewLayerRegion(-1, 0, op),
		NewLayerRegion(0, 1, op),
		NewLayerRegion(1.5, 3, op),
		NewLayerRegion(3, 4, op),
	)
	var ve *ValidationError
	if err := tissue.Validate(); !errors.As(err, &ve) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bad := threeLayers()
	bad.Layers[1].RegionOP.G = 2
	if err := bad.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected optical property error, got %v", err)
	}
}

func TestVoxelIntersection(t *testing.T) {
	v := &VoxelRegion{X: NewDoubleRange(-1, 1, 2), Y: NewDoubleRange(-1, 1, 2), Z: NewDoubleRange(1, 3, 2)}
	dist, ok := v.RayIntersectBoundary(Position{Z: 0}, DirectionAlongPositiveZ, false)
	if !ok || !nearly(dist, 1, 1e-12) {
		t.Fatalf("entry: %g %v", dist, ok)
	}
	dist, ok = v.RayIntersectBoundary(Position{Z: 2}, DirectionAlongPositiveZ, true)
	if !ok || !nearly(dist, 1, 1e-12) {
		t.Fatalf("exit: %g %v", dist, ok)
	}
	if _, ok := v.RayIntersectBoundary(Position{X: 5}, DirectionAlongPositiveZ, false); ok {
		t.Fatal("ray beside the voxel must miss")
	}
	n := v.SurfaceNormal(Position{X: 0.2, Z: 3})
	if n != (Direction{0, 0, 1}) {
		t.Fatalf("normal = %+v", n)
	}
}

func TestEllipsoidIntersection(t *testing.T) {
	e := &EllipsoidRegion{Center: Position{Z: 2}, Dx: 1, Dy: 1, Dz: 0.5}
	dist, ok := e.RayIntersectBoundary(Position{}, DirectionAlongPositiveZ, false)
	if !ok || !nearly(dist, 1.5, 1e-12) {
		t.Fatalf("entry: %g %v", dist, ok)
	}
	dist, ok = e.RayIntersectBoundary(Position{Z: 2}, DirectionAlongPositiveZ, true)
	if !ok || !nearly(dist, 0.5, 1e-12) {
		t.Fatalf("exit: %g %v", dist, ok)
	}
	n := e.SurfaceNormal(Position{X: 1, Z: 2})
	if !nearly(n.Ux, 1, 1e-12) {
		t.Fatalf("normal = %+v", n)
	}
	if !e.ContainsPosition(Position{Z: 2.4}) || e.ContainsPosition(Position{Z: 2.6}) {
		t.Fatal("containment wrong")
	}
}

func TestSingleInclusionTissue(t *testing.T) {
	layers := threeLayers().Layers
	inc := &EllipsoidRegion{Center: Position{Z: 2}, Dx: 0.5, Dy: 0.5, Dz: 0.5,
		RegionOP: OpticalProperties{Mua: 1, Mus: 1, G: 0.9, N: 1.4}}
	tissue, err := NewSingleInclusionTissue(inc, layers...)
	if err != nil {
		t.Fatal(err)
	}
	if got := tissue.RegionIndex(Position{Z: 2}); got != len(layers) {
		t.Fatalf("inclusion index = %d, want %d", got, len(layers))
	}
	dist, next := tissue.DistanceToBoundary(Position{Z: 1}, DirectionAlongPositiveZ, 2)
	if !nearly(dist, 0.5, 1e-12) || next != len(layers) {
		t.Fatalf("into inclusion: dist=%g next=%d", dist, next)
	}
	dist, next = tissue.DistanceToBoundary(Position{Z: 2}, DirectionAlongPositiveZ, len(layers))
	if !nearly(dist, 0.5, 1e-12) || next != 2 {
		t.Fatalf("out of inclusion: dist=%g next=%d", dist, next)
	}

	crossing := &VoxelRegion{X: NewDoubleRange(-1, 1, 2), Y: NewDoubleRange(-1, 1, 2), Z: NewDoubleRange(0.5, 1.5, 2),
		RegionOP: OpticalProperties{Mua: 1, Mus: 1, G: 0.9, N: 1.4}}
	if _, err := NewSingleInclusionTissue(crossing, threeLayers().Layers...); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("inclusion across a layer boundary must be rejected, got %v", err)
	}
}
