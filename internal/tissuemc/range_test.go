package tissuemc

import (
	"errors"
	"testing"
)

func TestDoubleRangeEdgesAndBins(t *testing.T) {
	r := NewDoubleRange(0, 10, 11)
	e := r.Edges()
	if len(e) != 11 || e[0] != 0 || e[10] != 10 || !nearly(e[3], 3, 1e-12) {
		t.Fatalf("edges = %v", e)
	}
	if r.Bins() != 10 || !nearly(r.Delta(), 1, 1e-15) {
		t.Fatalf("bins=%d delta=%g", r.Bins(), r.Delta())
	}
	m := r.Midpoints()
	if len(m) != 10 || !nearly(m[0], 0.5, 1e-12) || !nearly(m[9], 9.5, 1e-12) {
		t.Fatalf("midpoints = %v", m)
	}
	one := NewDoubleRange(0, 2, 2).Midpoints()
	if len(one) != 1 || one[0] != 1 {
		t.Fatalf("single bin midpoints = %v", one)
	}
}

func TestDoubleRangeBinIndex(t *testing.T) {
	r := NewDoubleRange(0, 10, 11)
	cases := map[Real]int{0: 0, 0.999: 0, 1: 1, 9.999: 9, 10: -1, -0.1: -1}
	for x, want := range cases {
		if got := r.BinIndex(x); got != want {
			t.Fatalf("BinIndex(%g) = %d, want %d", x, got, want)
		}
	}
}

func TestDoubleRangeValidate(t *testing.T) {
	for _, r := range []DoubleRange{{0, 1, 1}, {1, 0, 5}, {0, 0, 3}} {
		err := r.validate("R")
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("range %+v: expected configuration error, got %v", r, err)
		}
	}
	if err := NewDoubleRange(0, 1, 2).validate("R"); err != nil {
		t.Fatal(err)
	}
}
