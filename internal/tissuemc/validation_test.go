package tissuemc

import (
	"errors"
	"testing"
)

func TestSimulationInputValidation(t *testing.T) {
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	valid := func() *SimulationInput {
		in := slabInput(10, 1, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
		in.applyDefaults()
		return in
	}
	if err := valid().Validate(); err != nil {
		t.Fatal(err)
	}
	cases := map[string]func(in *SimulationInput){
		"roulette threshold": func(in *SimulationInput) { in.Options.RussianRouletteWeightThreshold = 0.5 },
		"weighting":          func(in *SimulationInput) { in.Options.AbsorptionWeightingType = "Partial" },
		"generator":          func(in *SimulationInput) { in.Options.RandomNumberGeneratorType = "Dice" },
		"duplicate database": func(in *SimulationInput) {
			in.Options.Databases = []DatabaseKind{SpecularReflectanceDatabase, SpecularReflectanceDatabase}
		},
		"unknown database": func(in *SimulationInput) { in.Options.Databases = []DatabaseKind{"Everything"} },
		"source above tissue": func(in *SimulationInput) {
			in.Source = NewDirectionalPointSource(Position{Z: -0.5}, DirectionAlongPositiveZ)
		},
		"source heading out":   func(in *SimulationInput) { in.Source = NewDirectionalPointSource(Position{}, DirectionAlongNegativeZ) },
		"isotropic in ambient": func(in *SimulationInput) { in.Source = &IsotropicPointSource{PointLocation: Position{Z: 5}} },
		"zero direction":       func(in *SimulationInput) { in.Source = &DirectionalPointSource{} },
		"flat source radius":   func(in *SimulationInput) { in.Source = &FlatCircularSource{Direction: DirectionAlongPositiveZ} },
		"duplicate detector": func(in *SimulationInput) {
			in.DetectorInputs = append(in.DetectorInputs, TDiffuseDetectorInput{common("R")})
		},
		"unnamed detector": func(in *SimulationInput) { in.DetectorInputs = []DetectorInput{RDiffuseDetectorInput{}} },
		"bad rho range": func(in *SimulationInput) {
			in.DetectorInputs = []DetectorInput{ROfRhoDetectorInput{DetectorCommon: common("r"), Rho: NewDoubleRange(1, 0, 5)}}
		},
		"negative mua": func(in *SimulationInput) { in.Tissue.(*MultiLayerTissue).Layers[1].RegionOP.Mua = -1 },
		"perturbed region index": func(in *SimulationInput) {
			in.DetectorInputs = []DetectorInput{PMCROfRhoDetectorInput{DetectorCommon: common("p"),
				PerturbationCommon: PerturbationCommon{PerturbedOps: regionOpticalProperties(in.Tissue), PerturbedRegionsIndices: []int{7}},
				Rho:                NewDoubleRange(0, 1, 3)}}
		},
	}
	for name, mutate := range cases {
		in := valid()
		mutate(in)
		if err := in.Validate(); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestRecordedOn(t *testing.T) {
	cases := []struct {
		detector, db VirtualBoundaryType
		want         bool
	}{
		{DiffuseReflectanceVB, DiffuseReflectanceVB, true},
		{DiffuseReflectanceVB, PMCDiffuseReflectanceVB, true},
		{DiffuseTransmittanceVB, PMCDiffuseTransmittanceVB, true},
		{PMCDiffuseReflectanceVB, DiffuseReflectanceVB, false},
		{DiffuseTransmittanceVB, DiffuseReflectanceVB, false},
		{SpecularReflectanceVB, DiffuseReflectanceVB, false},
	}
	for _, c := range cases {
		if got := recordedOn(c.detector, c.db); got != c.want {
			t.Fatalf("recordedOn(%s, %s) = %v", c.detector, c.db, got)
		}
	}
}

func TestBelongsToSurfaceVirtualBoundary(t *testing.T) {
	top := PseudoReflectedTissueBoundary
	if !BelongsToSurfaceVirtualBoundary(DiffuseReflectanceVB, top) || BelongsToSurfaceVirtualBoundary(DiffuseReflectanceVB, top|PseudoSpecularTissueBoundary) {
		t.Fatal("diffuse reflectance must exclude specular light")
	}
	if !BelongsToSurfaceVirtualBoundary(SpecularReflectanceVB, PseudoSpecularTissueBoundary) || BelongsToSurfaceVirtualBoundary(SpecularReflectanceVB, top) {
		t.Fatal("specular membership wrong")
	}
	if !BelongsToSurfaceVirtualBoundary(PMCDiffuseTransmittanceVB, PseudoTransmittedTissueBoundary) || BelongsToSurfaceVirtualBoundary(GenericVolumeVB, top) {
		t.Fatal("transmittance or volume membership wrong")
	}
}
