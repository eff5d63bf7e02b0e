package tissuemc

import (
	"fmt"
)

// Validate rejects inputs that cannot be simulated. It runs before any
// photon is launched and also checks that every detector can be built.
func (in *SimulationInput) Validate() error {
	if in.N <= 0 {
		return invalid("N", "number of photons must be > 0, got %d", in.N)
	}
	if err := in.Options.validate(); err != nil {
		return err
	}
	if in.Tissue == nil {
		return invalid("TissueInput", "missing tissue")
	}
	if err := in.Tissue.Validate(); err != nil {
		return err
	}
	if in.Source == nil {
		return invalid("SourceInput", "missing source")
	}
	if err := in.Source.Validate(); err != nil {
		return err
	}
	if err := validateSourceInTissue(in.Source, in.Tissue); err != nil {
		return err
	}
	ops := regionOpticalProperties(in.Tissue)
	if _, err := createDetectors(in.DetectorInputs, ops); err != nil {
		return err
	}
	return nil
}

func (o *SimulationOptions) validate() error {
	switch o.RandomNumberGeneratorType {
	case MersenneTwister, PCG:
	default:
		return invalid("Options.RandomNumberGeneratorType", "unknown generator %q", o.RandomNumberGeneratorType)
	}
	switch o.AbsorptionWeightingType {
	case Analog, Discrete, Continuous:
	default:
		return invalid("Options.AbsorptionWeightingType", "unknown absorption weighting %q", o.AbsorptionWeightingType)
	}
	switch o.PhaseFunctionType {
	case HenyeyGreenstein, Bidirectional:
	default:
		return invalid("Options.PhaseFunctionType", "unknown phase function %q", o.PhaseFunctionType)
	}
	if t := o.RussianRouletteWeightThreshold; !(t >= 0 && t <= RouletteChance) {
		return invalid("Options.RussianRouletteWeightThreshold", "threshold must be in [0,%g], got %g", RouletteChance, t)
	}
	if o.PhotonsPerBatch <= 0 {
		return invalid("Options.PhotonsPerBatch", "batch size must be > 0, got %d", o.PhotonsPerBatch)
	}
	seen := map[DatabaseKind]bool{}
	for i, k := range o.Databases {
		if _, ok := k.info(); !ok {
			return invalid(fmt.Sprintf("Options.Databases[%d]", i), "unknown database kind %q", k)
		}
		if seen[k] {
			return invalid(fmt.Sprintf("Options.Databases[%d]", i), "database %q listed twice", k)
		}
		seen[k] = true
	}
	return nil
}

// validateSourceInTissue requires photons to start inside the turbid medium
// or on its surface heading in.
func validateSourceInTissue(src Source, t Tissue) error {
	p := sourcePosition(src)
	switch s := src.(type) {
	case *IsotropicPointSource:
		if t.AmbientSide(t.RegionIndex(p)) != 0 {
			return invalid("SourceInput.PointLocation", "isotropic source at %+v lies outside the tissue", p)
		}
	case *DirectionalPointSource:
		if t.AmbientSide(t.RegionIndexDirected(p, s.Direction)) != 0 {
			return invalid("SourceInput.PointLocation", "source at %+v heading %+v does not enter the tissue", p, s.Direction)
		}
	case *FlatCircularSource:
		if t.AmbientSide(t.RegionIndexDirected(p, s.Direction)) != 0 {
			return invalid("SourceInput.Center", "source at %+v heading %+v does not enter the tissue", p, s.Direction)
		}
	}
	return nil
}

func regionOpticalProperties(t Tissue) []OpticalProperties {
	rs := t.Regions()
	ops := make([]OpticalProperties, len(rs))
	for i, r := range rs {
		ops[i] = r.OpticalProperties()
	}
	return ops
}

// validate checks a post-processing request against the database it reads.
func (in *PostProcessorInput) validate(header DatabaseHeader, hasCollisionInfo bool) error {
	if !in.VirtualBoundaryType.valid() || !in.VirtualBoundaryType.IsSurface() {
		return invalid("VirtualBoundaryType", "%q is not a surface virtual boundary", in.VirtualBoundaryType)
	}
	if len(header.OpticalProperties) != header.NumberOfSubRegions {
		return invalid("InputFolder", "database header lists %d optical properties for %d regions",
			len(header.OpticalProperties), header.NumberOfSubRegions)
	}
	ds, err := createDetectors(in.DetectorInputs, header.OpticalProperties)
	if err != nil {
		return err
	}
	for _, d := range ds {
		if !recordedOn(d.VirtualBoundary(), in.VirtualBoundaryType) {
			return invalid("DetectorInputs."+d.Name(), "%s belongs to %s, not %s", d.TallyType(), d.VirtualBoundary(), in.VirtualBoundaryType)
		}
		if _, ok := d.(*PerturbationDetector); ok && !hasCollisionInfo {
			return invalid("DetectorInputs."+d.Name(), "%s needs a collision info database", d.TallyType())
		}
		if _, ok := d.(*TimeOfRhoAndSubregionDetector); ok && !hasCollisionInfo {
			return invalid("DetectorInputs."+d.Name(), "%s needs a collision info database", d.TallyType())
		}
	}
	return nil
}

// recordedOn reports whether a database of vb carries what a detector of
// detectorVB tallies. Perturbation databases hold the same photons as their
// plain counterparts.
func recordedOn(detectorVB, vb VirtualBoundaryType) bool {
	switch {
	case detectorVB == vb:
		return true
	case vb == PMCDiffuseReflectanceVB:
		return detectorVB == DiffuseReflectanceVB
	case vb == PMCDiffuseTransmittanceVB:
		return detectorVB == DiffuseTransmittanceVB
	}
	return false
}
