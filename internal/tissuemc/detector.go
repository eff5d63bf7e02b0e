package tissuemc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Detector is a statistical accumulator bound to one virtual boundary.
type Detector interface {
	Name() string
	TallyType() string
	VirtualBoundary() VirtualBoundaryType
	// Clone returns an empty detector with the same configuration.
	Clone() Detector
	// Merge adds the raw sums of other, a Clone of the same detector.
	Merge(other Detector) error
	// Normalize converts raw sums to physical units for n launched photons.
	Normalize(n int64)
	Result() *DetectorResult
}

// SurfaceDetector tallies photon data points crossing a surface virtual boundary.
type SurfaceDetector interface {
	Detector
	TallySingle(dp *PhotonDataPoint, ci CollisionInfo)
}

// VolumeDetector tallies absorbed weight deposited inside the tissue.
type VolumeDetector interface {
	Detector
	TallyDeposit(p Position, w Real, region int)
	// EndHistory is called once after every photon history.
	EndHistory()
}

// Axis is one dimension of a detector's bin grid.
type Axis struct {
	Name  string `json:"Name"`
	Edges []Real `json:"Edges"`
}

// DetectorResult is the normalized output of one detector.
type DetectorResult struct {
	Name            string   `json:"Name"`
	TallyType       string   `json:"TallyType"`
	Axes            []Axis   `json:"Axes,omitempty"`
	Dimensions      []int    `json:"Dimensions"`
	Complex         bool     `json:"Complex,omitempty"`
	Mean            []Real   `json:"-"`
	SecondMoment    []Real   `json:"-"`
	TallyCount      int64    `json:"TallyCount"`
	OutOfRange      int64    `json:"OutOfRange"`
	NumberOfPhotons int64    `json:"NumberOfPhotons"`
	Warnings        []string `json:"Warnings,omitempty"`
}

// StandardDeviation of each mean bin, from the second moment. Nil when the
// second moment was not tallied.
func (r *DetectorResult) StandardDeviation() []Real {
	if r.SecondMoment == nil || r.NumberOfPhotons == 0 {
		return nil
	}
	sd := make([]Real, len(r.Mean))
	n := Real(r.NumberOfPhotons)
	for i, m := range r.Mean {
		if v := (r.SecondMoment[i] - m*m) / n; v > 0 {
			sd[i] = math.Sqrt(v)
		}
	}
	return sd
}

// Total of all mean bins.
func (r *DetectorResult) Total() Real { return floats.Sum(r.Mean) }

// accumulator holds first and optional second moment sums.
type accumulator struct {
	Mean         []Real
	SecondMoment []Real
	TallyCount   int64
	OutOfRange   int64
}

func newAccumulator(n int, secondMoment bool) accumulator {
	a := accumulator{Mean: make([]Real, n)}
	if secondMoment {
		a.SecondMoment = make([]Real, n)
	}
	return a
}

func (a *accumulator) add(i int, w Real) {
	a.Mean[i] += w
	if a.SecondMoment != nil {
		a.SecondMoment[i] += w * w
	}
}

func (a *accumulator) merge(b *accumulator) {
	floats.Add(a.Mean, b.Mean)
	if a.SecondMoment != nil {
		floats.Add(a.SecondMoment, b.SecondMoment)
	}
	a.TallyCount += b.TallyCount
	a.OutOfRange += b.OutOfRange
}

// detectorBase carries what every detector shares. Concrete detectors embed it.
type detectorBase struct {
	name         string
	tallyType    string
	vb           VirtualBoundaryType
	axes         []Axis
	dims         []int
	complex      bool
	secondMoment bool
	// norm is the per-bin physical normalization, excluding N.
	norm []Real
	acc  accumulator

	nPhotons int64
}

func newDetectorBase(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, axes []Axis, dims []int) detectorBase {
	n := 1
	for _, d := range dims {
		n *= d
	}
	norm := make([]Real, n)
	for i := range norm {
		norm[i] = 1
	}
	return detectorBase{
		name:         name,
		tallyType:    tallyType,
		vb:           vb,
		axes:         axes,
		dims:         dims,
		secondMoment: secondMoment,
		norm:         norm,
		acc:          newAccumulator(n, secondMoment),
	}
}

func (d *detectorBase) Name() string                         { return d.name }
func (d *detectorBase) TallyType() string                    { return d.tallyType }
func (d *detectorBase) VirtualBoundary() VirtualBoundaryType { return d.vb }
func (d *detectorBase) base() *detectorBase                  { return d }

// fresh copies the configuration with zeroed sums.
func (d *detectorBase) fresh() detectorBase {
	c := *d
	c.acc = newAccumulator(len(d.acc.Mean), d.secondMoment)
	c.nPhotons = 0
	return c
}

func (d *detectorBase) Merge(other Detector) error {
	o, ok := other.(interface{ base() *detectorBase })
	if !ok || other.TallyType() != d.tallyType || len(o.base().acc.Mean) != len(d.acc.Mean) {
		return fmt.Errorf("detector %s: cannot merge %s detector %s", d.name, other.TallyType(), other.Name())
	}
	d.acc.merge(&o.base().acc)
	return nil
}

func (d *detectorBase) Normalize(n int64) {
	d.nPhotons = n
	if n <= 0 {
		return
	}
	N := Real(n)
	for i, f := range d.norm {
		d.acc.Mean[i] /= f * N
		if d.acc.SecondMoment != nil {
			d.acc.SecondMoment[i] /= f * f * N
		}
	}
}

func (d *detectorBase) Result() *DetectorResult {
	r := &DetectorResult{
		Name:            d.name,
		TallyType:       d.tallyType,
		Axes:            d.axes,
		Dimensions:      d.dims,
		Complex:         d.complex,
		Mean:            append([]Real(nil), d.acc.Mean...),
		TallyCount:      d.acc.TallyCount,
		OutOfRange:      d.acc.OutOfRange,
		NumberOfPhotons: d.nPhotons,
	}
	if d.acc.SecondMoment != nil {
		r.SecondMoment = append([]Real(nil), d.acc.SecondMoment...)
	}
	if d.acc.TallyCount == 0 {
		r.Warnings = append(r.Warnings, "detector never tallied")
	}
	if d.acc.OutOfRange > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d tallies fell outside the binned range", d.acc.OutOfRange))
	}
	return r
}

// tally adds w to flat bin i, counting out-of-range tallies for i < 0.
func (d *detectorBase) tally(i int, w Real) {
	if i < 0 {
		d.acc.OutOfRange++
		return
	}
	d.acc.add(i, w)
	d.acc.TallyCount++
}

// index flattens a multi-dimensional bin index in row-major order; any
// negative component yields -1.
func (d *detectorBase) index(idx ...int) int {
	flat := 0
	for k, i := range idx {
		if i < 0 || i >= d.dims[k] {
			return -1
		}
		flat = flat*d.dims[k] + i
	}
	return flat
}

func rangeAxis(name string, r DoubleRange) Axis { return Axis{Name: name, Edges: r.Edges()} }

// ringArea is 2πρΔρ for each ρ bin.
func ringArea(rho DoubleRange) []Real {
	mids := rho.Midpoints()
	out := make([]Real, len(mids))
	for i, m := range mids {
		out[i] = 2 * math.Pi * m * rho.Delta()
	}
	return out
}

// solidAngle is 2π sinθ Δθ for each θ bin.
func solidAngle(angle DoubleRange) []Real {
	mids := angle.Midpoints()
	out := make([]Real, len(mids))
	for i, m := range mids {
		out[i] = 2 * math.Pi * math.Sin(m) * angle.Delta()
	}
	return out
}

// setNorm fills norm as the outer product of per-axis factors.
func (d *detectorBase) setNorm(factors ...[]Real) {
	for i := range d.norm {
		rem := i
		f := Real(1)
		for k := len(d.dims) - 1; k >= 0; k-- {
			j := rem % d.dims[k]
			rem /= d.dims[k]
			if k < len(factors) && factors[k] != nil {
				f *= factors[k][j]
			}
		}
		d.norm[i] = f
	}
}

// constant returns a per-bin factor slice of length n filled with v.
func constant(n int, v Real) []Real {
	out := make([]Real, n)
	for i := range out {
		out[i] = v
	}
	return out
}
