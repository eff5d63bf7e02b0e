package tissuemc

import (
	"math"
)

// exitAngle is the polar angle of an exit direction measured from the
// outward normal of the surface it left.
func exitAngle(d Direction) Real {
	return math.Acos(clamp(math.Abs(d.Uz), 0, 1))
}

// TotalDetector sums the weight of every data point on its boundary:
// RDiffuse, TDiffuse and RSpecular.
type TotalDetector struct {
	detectorBase
}

func newTotalDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool) *TotalDetector {
	return &TotalDetector{newDetectorBase(name, tallyType, vb, secondMoment, nil, []int{1})}
}

func (d *TotalDetector) Clone() Detector { return &TotalDetector{d.fresh()} }

func (d *TotalDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	d.tally(0, dp.Weight)
}

// RhoDetector bins exit weight by radial distance from the source axis.
type RhoDetector struct {
	detectorBase
	Rho DoubleRange
}

func newRhoDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, rho DoubleRange) *RhoDetector {
	d := &RhoDetector{
		detectorBase: newDetectorBase(name, tallyType, vb, secondMoment, []Axis{rangeAxis("Rho", rho)}, []int{rho.Bins()}),
		Rho:          rho,
	}
	d.setNorm(ringArea(rho))
	return d
}

func (d *RhoDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *RhoDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	d.tally(d.Rho.BinIndex(dp.Position.Rho()), dp.Weight)
}

// AngleDetector bins exit weight by polar exit angle, per unit solid angle.
type AngleDetector struct {
	detectorBase
	Angle DoubleRange
}

func newAngleDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, angle DoubleRange) *AngleDetector {
	d := &AngleDetector{
		detectorBase: newDetectorBase(name, tallyType, vb, secondMoment, []Axis{rangeAxis("Angle", angle)}, []int{angle.Bins()}),
		Angle:        angle,
	}
	d.setNorm(solidAngle(angle))
	return d
}

func (d *AngleDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *AngleDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	d.tally(d.Angle.BinIndex(exitAngle(dp.Direction)), dp.Weight)
}

// RhoAndAngleDetector bins exit weight by ρ and exit angle.
type RhoAndAngleDetector struct {
	detectorBase
	Rho, Angle DoubleRange
}

func newRhoAndAngleDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, rho, angle DoubleRange) *RhoAndAngleDetector {
	d := &RhoAndAngleDetector{
		detectorBase: newDetectorBase(name, tallyType, vb, secondMoment,
			[]Axis{rangeAxis("Rho", rho), rangeAxis("Angle", angle)}, []int{rho.Bins(), angle.Bins()}),
		Rho:   rho,
		Angle: angle,
	}
	d.setNorm(ringArea(rho), solidAngle(angle))
	return d
}

func (d *RhoAndAngleDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *RhoAndAngleDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	d.tally(d.index(d.Rho.BinIndex(dp.Position.Rho()), d.Angle.BinIndex(exitAngle(dp.Direction))), dp.Weight)
}

// RhoAndTimeDetector bins exit weight by ρ and time of flight.
type RhoAndTimeDetector struct {
	detectorBase
	Rho, Time DoubleRange
}

func newRhoAndTimeDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, rho, time DoubleRange) *RhoAndTimeDetector {
	d := &RhoAndTimeDetector{
		detectorBase: newDetectorBase(name, tallyType, vb, secondMoment,
			[]Axis{rangeAxis("Rho", rho), rangeAxis("Time", time)}, []int{rho.Bins(), time.Bins()}),
		Rho:  rho,
		Time: time,
	}
	d.setNorm(ringArea(rho), constant(time.Bins(), time.Delta()))
	return d
}

func (d *RhoAndTimeDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *RhoAndTimeDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	d.tally(d.index(d.Rho.BinIndex(dp.Position.Rho()), d.Time.BinIndex(dp.TotalTime)), dp.Weight)
}

// XAndYDetector bins exit weight on a Cartesian grid, per unit area.
type XAndYDetector struct {
	detectorBase
	X, Y DoubleRange
}

func newXAndYDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, x, y DoubleRange) *XAndYDetector {
	d := &XAndYDetector{
		detectorBase: newDetectorBase(name, tallyType, vb, secondMoment,
			[]Axis{rangeAxis("X", x), rangeAxis("Y", y)}, []int{x.Bins(), y.Bins()}),
		X: x,
		Y: y,
	}
	d.setNorm(constant(x.Bins(), x.Delta()), constant(y.Bins(), y.Delta()))
	return d
}

func (d *XAndYDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *XAndYDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	d.tally(d.index(d.X.BinIndex(dp.Position.X), d.Y.BinIndex(dp.Position.Y)), dp.Weight)
}

// FxDetector is the spatial-frequency reflectance: the Fourier transform of
// exit weight along x. Mean holds interleaved real and imaginary parts.
type FxDetector struct {
	detectorBase
	Fx DoubleRange

	fx []Real
}

func newFxDetector(name, tallyType string, vb VirtualBoundaryType, secondMoment bool, fx DoubleRange) *FxDetector {
	values := fx.Edges()
	d := &FxDetector{
		detectorBase: newDetectorBase(name, tallyType, vb, secondMoment,
			[]Axis{{Name: "Fx", Edges: values}}, []int{len(values), 2}),
		Fx: fx,
		fx: values,
	}
	d.complex = true
	return d
}

func (d *FxDetector) Clone() Detector { c := *d; c.detectorBase = d.fresh(); return &c }

func (d *FxDetector) TallySingle(dp *PhotonDataPoint, _ CollisionInfo) {
	x := dp.Position.X
	for i, f := range d.fx {
		s, c := math.Sincos(2 * math.Pi * f * x)
		d.acc.add(2*i, dp.Weight*c)
		d.acc.add(2*i+1, -dp.Weight*s)
	}
	d.acc.TallyCount++
}

// TimeOfRhoAndSubregionDetector histograms the time spent in each tissue
// region by reflected photons, per ρ bin.
type TimeOfRhoAndSubregionDetector struct {
	detectorBase
	Rho, Time DoubleRange

	n []Real
}

func newTimeOfRhoAndSubregionDetector(name, tallyType string, secondMoment bool, rho, time DoubleRange, ops []OpticalProperties) *TimeOfRhoAndSubregionDetector {
	regions := make([]Real, len(ops))
	n := make([]Real, len(ops))
	for i, op := range ops {
		regions[i] = Real(i)
		n[i] = op.N
	}
	d := &TimeOfRhoAndSubregionDetector{
		detectorBase: newDetectorBase(name, tallyType, DiffuseReflectanceVB, secondMoment,
			[]Axis{rangeAxis("Rho", rho), {Name: "SubRegion", Edges: regions}, rangeAxis("Time", time)},
			[]int{rho.Bins(), len(ops), time.Bins()}),
		Rho:  rho,
		Time: time,
		n:    n,
	}
	d.setNorm(ringArea(rho), nil, constant(time.Bins(), time.Delta()))
	return d
}

func (d *TimeOfRhoAndSubregionDetector) Clone() Detector {
	c := *d
	c.detectorBase = d.fresh()
	return &c
}

func (d *TimeOfRhoAndSubregionDetector) TallySingle(dp *PhotonDataPoint, ci CollisionInfo) {
	ir := d.Rho.BinIndex(dp.Position.Rho())
	if ir < 0 || len(ci) != len(d.n) {
		d.acc.OutOfRange++
		return
	}
	for r, info := range ci {
		if info.PathLength == 0 {
			continue
		}
		t := info.PathLength * d.n[r] / SpeedOfLight
		d.tally(d.index(ir, r, d.Time.BinIndex(t)), dp.Weight)
	}
}
