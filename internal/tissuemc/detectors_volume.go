package tissuemc

// historyScratch accumulates one history's deposits so that second moments
// are taken per photon rather than per deposit.
type historyScratch struct {
	w       []Real
	touched []int
}

func newHistoryScratch(n int) historyScratch { return historyScratch{w: make([]Real, n)} }

func (h *historyScratch) add(i int, w Real) {
	if h.w[i] == 0 {
		h.touched = append(h.touched, i)
	}
	h.w[i] += w
}

// flush moves the scratch into d and clears it.
func (h *historyScratch) flush(d *detectorBase) {
	if len(h.touched) == 0 {
		return
	}
	for _, i := range h.touched {
		d.acc.add(i, h.w[i])
		h.w[i] = 0
	}
	h.touched = h.touched[:0]
	d.acc.TallyCount++
}

// ATotalDetector is the total absorbed weight.
type ATotalDetector struct {
	detectorBase
	scratch historyScratch
}

func newATotalDetector(name string, secondMoment bool) *ATotalDetector {
	return &ATotalDetector{
		detectorBase: newDetectorBase(name, "ATotal", GenericVolumeVB, secondMoment, nil, []int{1}),
		scratch:      newHistoryScratch(1),
	}
}

func (d *ATotalDetector) Clone() Detector {
	return &ATotalDetector{detectorBase: d.fresh(), scratch: newHistoryScratch(1)}
}

func (d *ATotalDetector) TallyDeposit(_ Position, w Real, _ int) { d.scratch.add(0, w) }
func (d *ATotalDetector) EndHistory()                            { d.scratch.flush(&d.detectorBase) }

// RhoAndZDetector bins deposited weight on a cylindrical grid. As a fluence
// detector each deposit is divided by the absorption coefficient of its region.
type RhoAndZDetector struct {
	detectorBase
	Rho, Z DoubleRange

	mua     []Real
	fluence bool
	scratch historyScratch
}

func newRhoAndZDetector(name, tallyType string, secondMoment bool, rho, z DoubleRange, ops []OpticalProperties, fluence bool) *RhoAndZDetector {
	d := &RhoAndZDetector{
		detectorBase: newDetectorBase(name, tallyType, GenericVolumeVB, secondMoment,
			[]Axis{rangeAxis("Rho", rho), rangeAxis("Z", z)}, []int{rho.Bins(), z.Bins()}),
		Rho:     rho,
		Z:       z,
		fluence: fluence,
	}
	d.mua = make([]Real, len(ops))
	for i, op := range ops {
		d.mua[i] = op.Mua
	}
	d.setNorm(ringArea(rho), constant(z.Bins(), z.Delta()))
	d.scratch = newHistoryScratch(len(d.acc.Mean))
	return d
}

func (d *RhoAndZDetector) Clone() Detector {
	c := *d
	c.detectorBase = d.fresh()
	c.scratch = newHistoryScratch(len(d.acc.Mean))
	return &c
}

func (d *RhoAndZDetector) TallyDeposit(p Position, w Real, region int) {
	if d.fluence {
		if region < 0 || region >= len(d.mua) || d.mua[region] == 0 {
			return
		}
		w /= d.mua[region]
	}
	i := d.index(d.Rho.BinIndex(p.Rho()), d.Z.BinIndex(p.Z))
	if i < 0 {
		d.acc.OutOfRange++
		return
	}
	d.scratch.add(i, w)
}

func (d *RhoAndZDetector) EndHistory() { d.scratch.flush(&d.detectorBase) }
