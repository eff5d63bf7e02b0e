package tissuemc

// VirtualBoundaryType names a logical surface or volume at which photon
// state is tallied or recorded.
type VirtualBoundaryType string

const (
	DiffuseReflectanceVB      VirtualBoundaryType = "DiffuseReflectance"
	DiffuseTransmittanceVB    VirtualBoundaryType = "DiffuseTransmittance"
	SpecularReflectanceVB     VirtualBoundaryType = "SpecularReflectance"
	GenericVolumeVB           VirtualBoundaryType = "GenericVolume"
	PMCDiffuseReflectanceVB   VirtualBoundaryType = "pMCDiffuseReflectance"
	PMCDiffuseTransmittanceVB VirtualBoundaryType = "pMCDiffuseTransmittance"
)

// surfaceVirtualBoundaries in dispatch order.
var surfaceVirtualBoundaries = []VirtualBoundaryType{
	DiffuseReflectanceVB,
	DiffuseTransmittanceVB,
	SpecularReflectanceVB,
	PMCDiffuseReflectanceVB,
	PMCDiffuseTransmittanceVB,
}

// IsSurface reports whether vb receives photon data points rather than deposits.
func (vb VirtualBoundaryType) IsSurface() bool {
	return vb != GenericVolumeVB
}

// IsPerturbation reports whether records of vb carry collision info.
func (vb VirtualBoundaryType) IsPerturbation() bool {
	return vb == PMCDiffuseReflectanceVB || vb == PMCDiffuseTransmittanceVB
}

func (vb VirtualBoundaryType) valid() bool {
	switch vb {
	case DiffuseReflectanceVB, DiffuseTransmittanceVB, SpecularReflectanceVB,
		GenericVolumeVB, PMCDiffuseReflectanceVB, PMCDiffuseTransmittanceVB:
		return true
	}
	return false
}

// BelongsToSurfaceVirtualBoundary is the only membership test used by the
// dispatcher, the database writers and the post-processor.
func BelongsToSurfaceVirtualBoundary(vb VirtualBoundaryType, s PhotonState) bool {
	switch vb {
	case DiffuseReflectanceVB, PMCDiffuseReflectanceVB:
		return s.ExitedTop() && !s.IsSpecular()
	case DiffuseTransmittanceVB, PMCDiffuseTransmittanceVB:
		return s.ExitedBottom()
	case SpecularReflectanceVB:
		return s.IsSpecular()
	}
	return false
}

// tallySet is one batch's view of the detectors and database buffers. It is
// owned by a single goroutine.
type tallySet struct {
	detectors []Detector
	byVB      map[VirtualBoundaryType][]SurfaceDetector
	volume    []VolumeDetector
	records   []*recordBuffer
	stats     SimulationStatistics
}

// recordBuffer holds the records one database kind collects during a batch.
type recordBuffer struct {
	kind       DatabaseKind
	photons    []PhotonDataPoint
	collisions []CollisionInfo
}

func newTallySet(detectors []Detector, kinds []DatabaseKind) *tallySet {
	ts := &tallySet{
		detectors: detectors,
		byVB:      make(map[VirtualBoundaryType][]SurfaceDetector),
	}
	for _, d := range detectors {
		switch dd := d.(type) {
		case SurfaceDetector:
			ts.byVB[d.VirtualBoundary()] = append(ts.byVB[d.VirtualBoundary()], dd)
		case VolumeDetector:
			ts.volume = append(ts.volume, dd)
		}
	}
	for _, k := range kinds {
		ts.records = append(ts.records, &recordBuffer{kind: k})
	}
	return ts
}

// cloneEmpty returns a set with fresh detector copies and empty buffers.
func (ts *tallySet) cloneEmpty() *tallySet {
	ds := make([]Detector, len(ts.detectors))
	for i, d := range ts.detectors {
		ds[i] = d.Clone()
	}
	kinds := make([]DatabaseKind, len(ts.records))
	for i, r := range ts.records {
		kinds[i] = r.kind
	}
	return newTallySet(ds, kinds)
}

func (ts *tallySet) deposit(p Position, w Real, region int) {
	if w == 0 {
		return
	}
	for _, d := range ts.volume {
		d.TallyDeposit(p, w, region)
	}
}

func (ts *tallySet) surface(dp *PhotonDataPoint, ci CollisionInfo) {
	for _, vb := range surfaceVirtualBoundaries {
		if !BelongsToSurfaceVirtualBoundary(vb, dp.StateFlag) {
			continue
		}
		for _, d := range ts.byVB[vb] {
			d.TallySingle(dp, ci)
		}
	}
	for _, r := range ts.records {
		if !BelongsToSurfaceVirtualBoundary(r.kind.VirtualBoundary(), dp.StateFlag) {
			continue
		}
		r.photons = append(r.photons, *dp)
		if r.kind.HasCollisionInfo() {
			r.collisions = append(r.collisions, ci.Clone())
		}
	}
	if dp.StateFlag.IsSpecular() {
		ts.stats.addSpecular(dp.Weight)
	}
}

// endHistory closes the per-history scratch of volume detectors.
func (ts *tallySet) endHistory(p *Photon) {
	for _, d := range ts.volume {
		d.EndHistory()
	}
	ts.stats.addPhoton(p)
}

// merge folds other into ts; other must come from cloneEmpty of the same set.
func (ts *tallySet) merge(other *tallySet) error {
	for i, d := range ts.detectors {
		if err := d.Merge(other.detectors[i]); err != nil {
			return err
		}
	}
	ts.stats.merge(&other.stats)
	return nil
}
