package tissuemc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DoubleRange describes Count equally spaced bin edges from Start to Stop.
type DoubleRange struct {
	Start Real `json:"Start"`
	Stop  Real `json:"Stop"`
	Count int  `json:"Count"`
}

// NewDoubleRange is a convenience constructor.
func NewDoubleRange(start, stop Real, count int) DoubleRange {
	return DoubleRange{Start: start, Stop: stop, Count: count}
}

// Edges returns the Count bin edges.
func (r DoubleRange) Edges() []Real {
	if r.Count <= 0 {
		return nil
	}
	if r.Count == 1 {
		return []Real{r.Start}
	}
	e := make([]Real, r.Count)
	floats.Span(e, r.Start, r.Stop)
	return e
}

// Bins is the number of bins spanned by the edges.
func (r DoubleRange) Bins() int {
	if r.Count < 2 {
		return 0
	}
	return r.Count - 1
}

// Delta is the bin width.
func (r DoubleRange) Delta() Real {
	if r.Count < 2 {
		return 0
	}
	return (r.Stop - r.Start) / Real(r.Count-1)
}

// Midpoints returns the bin centers.
func (r DoubleRange) Midpoints() []Real {
	n := r.Bins()
	if n == 0 {
		return nil
	}
	d := r.Delta()
	if n == 1 {
		return []Real{r.Start + d/2}
	}
	m := make([]Real, n)
	floats.Span(m, r.Start+d/2, r.Stop-d/2)
	return m
}

// BinIndex maps x to its bin, or -1 when x lies outside [Start, Stop).
func (r DoubleRange) BinIndex(x Real) int {
	n := r.Bins()
	if n == 0 || math.IsNaN(x) {
		return -1
	}
	lo, hi := r.Start, r.Stop
	if x < lo || x >= hi {
		return -1
	}
	i := int((x - lo) / (hi - lo) * Real(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func (r DoubleRange) validate(field string) error {
	if r.Count < 2 {
		return invalid(field, "range needs at least 2 edges, got %d", r.Count)
	}
	if !isFinite(r.Start) || !isFinite(r.Stop) || r.Start >= r.Stop {
		return invalid(field, "range [%g,%g] must be finite and increasing", r.Start, r.Stop)
	}
	return nil
}
