package tissuemc

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DetectorInput configures one detector. Each input creates a fresh detector
// for a run or a post-processing pass.
type DetectorInput interface {
	TallyType() string
	DetectorName() string
	// CreateDetector binds the input to the optical properties of the tissue
	// regions the photons were simulated with.
	CreateDetector(referenceOps []OpticalProperties) (Detector, error)
}

// Common detector settings shared by every input.
type DetectorCommon struct {
	Name              string `json:"Name"`
	TallySecondMoment bool   `json:"TallySecondMoment"`
}

func (c DetectorCommon) DetectorName() string { return c.Name }

type RDiffuseDetectorInput struct{ DetectorCommon }
type TDiffuseDetectorInput struct{ DetectorCommon }
type RSpecularDetectorInput struct{ DetectorCommon }
type ATotalDetectorInput struct{ DetectorCommon }

type ROfRhoDetectorInput struct {
	DetectorCommon
	Rho DoubleRange `json:"Rho"`
}

type TOfRhoDetectorInput struct {
	DetectorCommon
	Rho DoubleRange `json:"Rho"`
}

type ROfAngleDetectorInput struct {
	DetectorCommon
	Angle DoubleRange `json:"Angle"`
}

type TOfAngleDetectorInput struct {
	DetectorCommon
	Angle DoubleRange `json:"Angle"`
}

type ROfRhoAndTimeDetectorInput struct {
	DetectorCommon
	Rho  DoubleRange `json:"Rho"`
	Time DoubleRange `json:"Time"`
}

type ROfRhoAndAngleDetectorInput struct {
	DetectorCommon
	Rho   DoubleRange `json:"Rho"`
	Angle DoubleRange `json:"Angle"`
}

type TOfRhoAndAngleDetectorInput struct {
	DetectorCommon
	Rho   DoubleRange `json:"Rho"`
	Angle DoubleRange `json:"Angle"`
}

type ROfXAndYDetectorInput struct {
	DetectorCommon
	X DoubleRange `json:"X"`
	Y DoubleRange `json:"Y"`
}

type TOfXAndYDetectorInput struct {
	DetectorCommon
	X DoubleRange `json:"X"`
	Y DoubleRange `json:"Y"`
}

// ROfFxDetectorInput uses the Count values of Fx as the spatial frequencies.
type ROfFxDetectorInput struct {
	DetectorCommon
	Fx DoubleRange `json:"Fx"`
}

type ReflectedTimeOfRhoAndSubregionHistDetectorInput struct {
	DetectorCommon
	Rho  DoubleRange `json:"Rho"`
	Time DoubleRange `json:"Time"`
}

type AOfRhoAndZDetectorInput struct {
	DetectorCommon
	Rho DoubleRange `json:"Rho"`
	Z   DoubleRange `json:"Z"`
}

type FluenceOfRhoAndZDetectorInput struct {
	DetectorCommon
	Rho DoubleRange `json:"Rho"`
	Z   DoubleRange `json:"Z"`
}

// PerturbationCommon holds the perturbed optical properties, one entry per
// tissue region, and the regions whose properties are varied.
type PerturbationCommon struct {
	PerturbedOps            []OpticalProperties `json:"PerturbedOps"`
	PerturbedRegionsIndices []int               `json:"PerturbedRegionsIndices"`
}

type PMCROfRhoDetectorInput struct {
	DetectorCommon
	PerturbationCommon
	Rho DoubleRange `json:"Rho"`
}

type PMCROfRhoAndTimeDetectorInput struct {
	DetectorCommon
	PerturbationCommon
	Rho  DoubleRange `json:"Rho"`
	Time DoubleRange `json:"Time"`
}

type DMCdROfRhodMuaDetectorInput struct {
	DetectorCommon
	PerturbationCommon
	Rho DoubleRange `json:"Rho"`
}

type DMCdROfRhodMusDetectorInput struct {
	DetectorCommon
	PerturbationCommon
	Rho DoubleRange `json:"Rho"`
}

func (RDiffuseDetectorInput) TallyType() string       { return "RDiffuse" }
func (TDiffuseDetectorInput) TallyType() string       { return "TDiffuse" }
func (RSpecularDetectorInput) TallyType() string      { return "RSpecular" }
func (ATotalDetectorInput) TallyType() string         { return "ATotal" }
func (ROfRhoDetectorInput) TallyType() string         { return "ROfRho" }
func (TOfRhoDetectorInput) TallyType() string         { return "TOfRho" }
func (ROfAngleDetectorInput) TallyType() string       { return "ROfAngle" }
func (TOfAngleDetectorInput) TallyType() string       { return "TOfAngle" }
func (ROfRhoAndTimeDetectorInput) TallyType() string  { return "ROfRhoAndTime" }
func (ROfRhoAndAngleDetectorInput) TallyType() string { return "ROfRhoAndAngle" }
func (TOfRhoAndAngleDetectorInput) TallyType() string { return "TOfRhoAndAngle" }
func (ROfXAndYDetectorInput) TallyType() string       { return "ROfXAndY" }
func (TOfXAndYDetectorInput) TallyType() string       { return "TOfXAndY" }
func (ROfFxDetectorInput) TallyType() string          { return "ROfFx" }
func (ReflectedTimeOfRhoAndSubregionHistDetectorInput) TallyType() string {
	return "ReflectedTimeOfRhoAndSubregionHist"
}
func (AOfRhoAndZDetectorInput) TallyType() string       { return "AOfRhoAndZ" }
func (FluenceOfRhoAndZDetectorInput) TallyType() string { return "FluenceOfRhoAndZ" }
func (PMCROfRhoDetectorInput) TallyType() string        { return "pMCROfRho" }
func (PMCROfRhoAndTimeDetectorInput) TallyType() string { return "pMCROfRhoAndTime" }
func (DMCdROfRhodMuaDetectorInput) TallyType() string   { return "dMCdROfRhodMua" }
func (DMCdROfRhodMusDetectorInput) TallyType() string   { return "dMCdROfRhodMus" }

func (in RDiffuseDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	return newTotalDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment), nil
}

func (in TDiffuseDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	return newTotalDetector(in.Name, in.TallyType(), DiffuseTransmittanceVB, in.TallySecondMoment), nil
}

func (in RSpecularDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	return newTotalDetector(in.Name, in.TallyType(), SpecularReflectanceVB, in.TallySecondMoment), nil
}

func (in ATotalDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	return newATotalDetector(in.Name, in.TallySecondMoment), nil
}

func (in ROfRhoDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := in.Rho.validate(in.Name + ".Rho"); err != nil {
		return nil, err
	}
	return newRhoDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment, in.Rho), nil
}

func (in TOfRhoDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := in.Rho.validate(in.Name + ".Rho"); err != nil {
		return nil, err
	}
	return newRhoDetector(in.Name, in.TallyType(), DiffuseTransmittanceVB, in.TallySecondMoment, in.Rho), nil
}

func (in ROfAngleDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := in.Angle.validate(in.Name + ".Angle"); err != nil {
		return nil, err
	}
	return newAngleDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment, in.Angle), nil
}

func (in TOfAngleDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := in.Angle.validate(in.Name + ".Angle"); err != nil {
		return nil, err
	}
	return newAngleDetector(in.Name, in.TallyType(), DiffuseTransmittanceVB, in.TallySecondMoment, in.Angle), nil
}

func (in ROfRhoAndTimeDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"Rho": in.Rho, "Time": in.Time}); err != nil {
		return nil, err
	}
	return newRhoAndTimeDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment, in.Rho, in.Time), nil
}

func (in ROfRhoAndAngleDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"Rho": in.Rho, "Angle": in.Angle}); err != nil {
		return nil, err
	}
	return newRhoAndAngleDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment, in.Rho, in.Angle), nil
}

func (in TOfRhoAndAngleDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"Rho": in.Rho, "Angle": in.Angle}); err != nil {
		return nil, err
	}
	return newRhoAndAngleDetector(in.Name, in.TallyType(), DiffuseTransmittanceVB, in.TallySecondMoment, in.Rho, in.Angle), nil
}

func (in ROfXAndYDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"X": in.X, "Y": in.Y}); err != nil {
		return nil, err
	}
	return newXAndYDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment, in.X, in.Y), nil
}

func (in TOfXAndYDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"X": in.X, "Y": in.Y}); err != nil {
		return nil, err
	}
	return newXAndYDetector(in.Name, in.TallyType(), DiffuseTransmittanceVB, in.TallySecondMoment, in.X, in.Y), nil
}

func (in ROfFxDetectorInput) CreateDetector([]OpticalProperties) (Detector, error) {
	if in.Fx.Count < 1 || !isFinite(in.Fx.Start) || !isFinite(in.Fx.Stop) {
		return nil, invalid(in.Name+".Fx", "need at least one finite spatial frequency, got %+v", in.Fx)
	}
	return newFxDetector(in.Name, in.TallyType(), DiffuseReflectanceVB, in.TallySecondMoment, in.Fx), nil
}

func (in ReflectedTimeOfRhoAndSubregionHistDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"Rho": in.Rho, "Time": in.Time}); err != nil {
		return nil, err
	}
	return newTimeOfRhoAndSubregionDetector(in.Name, in.TallyType(), in.TallySecondMoment, in.Rho, in.Time, ops), nil
}

func (in AOfRhoAndZDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"Rho": in.Rho, "Z": in.Z}); err != nil {
		return nil, err
	}
	return newRhoAndZDetector(in.Name, in.TallyType(), in.TallySecondMoment, in.Rho, in.Z, ops, false), nil
}

func (in FluenceOfRhoAndZDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	if err := validateRanges(in.Name, map[string]DoubleRange{"Rho": in.Rho, "Z": in.Z}); err != nil {
		return nil, err
	}
	return newRhoAndZDetector(in.Name, in.TallyType(), in.TallySecondMoment, in.Rho, in.Z, ops, true), nil
}

func (in PMCROfRhoDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	return createPerturbationDetector(in.DetectorCommon, in.TallyType(), in.PerturbationCommon, ops, in.Rho, DoubleRange{}, NoDerivative)
}

func (in PMCROfRhoAndTimeDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	if err := in.Time.validate(in.Name + ".Time"); err != nil {
		return nil, err
	}
	return createPerturbationDetector(in.DetectorCommon, in.TallyType(), in.PerturbationCommon, ops, in.Rho, in.Time, NoDerivative)
}

func (in DMCdROfRhodMuaDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	return createPerturbationDetector(in.DetectorCommon, in.TallyType(), in.PerturbationCommon, ops, in.Rho, DoubleRange{}, DerivativeMua)
}

func (in DMCdROfRhodMusDetectorInput) CreateDetector(ops []OpticalProperties) (Detector, error) {
	return createPerturbationDetector(in.DetectorCommon, in.TallyType(), in.PerturbationCommon, ops, in.Rho, DoubleRange{}, DerivativeMus)
}

func createPerturbationDetector(c DetectorCommon, tallyType string, pc PerturbationCommon, ops []OpticalProperties, rho, time DoubleRange, kind DerivativeType) (Detector, error) {
	if err := rho.validate(c.Name + ".Rho"); err != nil {
		return nil, err
	}
	p, err := newPerturbation(c.Name, ops, pc.PerturbedOps, pc.PerturbedRegionsIndices)
	if err != nil {
		return nil, err
	}
	return newPerturbationDetector(c.Name, tallyType, c.TallySecondMoment, rho, time, kind, p), nil
}

func validateRanges(name string, ranges map[string]DoubleRange) error {
	keys := make([]string, 0, len(ranges))
	for k := range ranges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ranges[k].validate(name + "." + k); err != nil {
			return err
		}
	}
	return nil
}

// detectorInputRegistry decodes a detector input by its TallyType.
var detectorInputRegistry = map[string]func(json.RawMessage) (DetectorInput, error){
	"RDiffuse":                           decodeDetectorInput[RDiffuseDetectorInput],
	"TDiffuse":                           decodeDetectorInput[TDiffuseDetectorInput],
	"RSpecular":                          decodeDetectorInput[RSpecularDetectorInput],
	"ATotal":                             decodeDetectorInput[ATotalDetectorInput],
	"ROfRho":                             decodeDetectorInput[ROfRhoDetectorInput],
	"TOfRho":                             decodeDetectorInput[TOfRhoDetectorInput],
	"ROfAngle":                           decodeDetectorInput[ROfAngleDetectorInput],
	"TOfAngle":                           decodeDetectorInput[TOfAngleDetectorInput],
	"ROfRhoAndTime":                      decodeDetectorInput[ROfRhoAndTimeDetectorInput],
	"ROfRhoAndAngle":                     decodeDetectorInput[ROfRhoAndAngleDetectorInput],
	"TOfRhoAndAngle":                     decodeDetectorInput[TOfRhoAndAngleDetectorInput],
	"ROfXAndY":                           decodeDetectorInput[ROfXAndYDetectorInput],
	"TOfXAndY":                           decodeDetectorInput[TOfXAndYDetectorInput],
	"ROfFx":                              decodeDetectorInput[ROfFxDetectorInput],
	"ReflectedTimeOfRhoAndSubregionHist": decodeDetectorInput[ReflectedTimeOfRhoAndSubregionHistDetectorInput],
	"AOfRhoAndZ":                         decodeDetectorInput[AOfRhoAndZDetectorInput],
	"FluenceOfRhoAndZ":                   decodeDetectorInput[FluenceOfRhoAndZDetectorInput],
	"pMCROfRho":                          decodeDetectorInput[PMCROfRhoDetectorInput],
	"pMCROfRhoAndTime":                   decodeDetectorInput[PMCROfRhoAndTimeDetectorInput],
	"dMCdROfRhodMua":                     decodeDetectorInput[DMCdROfRhodMuaDetectorInput],
	"dMCdROfRhodMus":                     decodeDetectorInput[DMCdROfRhodMusDetectorInput],
}

func decodeDetectorInput[T DetectorInput](raw json.RawMessage) (DetectorInput, error) {
	var in T
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return in, nil
}

// createDetectors builds one detector per input and rejects duplicate names.
func createDetectors(inputs []DetectorInput, ops []OpticalProperties) ([]Detector, error) {
	seen := make(map[string]bool, len(inputs))
	ds := make([]Detector, 0, len(inputs))
	for i, in := range inputs {
		name := in.DetectorName()
		if name == "" {
			return nil, invalid(fmt.Sprintf("DetectorInputs[%d].Name", i), "detector name is required")
		}
		if seen[name] {
			return nil, invalid(fmt.Sprintf("DetectorInputs[%d].Name", i), "duplicate detector name %q", name)
		}
		seen[name] = true
		d, err := in.CreateDetector(ops)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, nil
}
