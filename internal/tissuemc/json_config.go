package tissuemc

import (
	"encoding/json"
	"fmt"
	"os"
)

// SimulationOptions controls the random walk and what a run records.
type SimulationOptions struct {
	Seed                           int64                     `json:"Seed"`
	RandomNumberGeneratorType      RandomNumberGeneratorType `json:"RandomNumberGeneratorType"`
	AbsorptionWeightingType        AbsorptionWeightingType   `json:"AbsorptionWeightingType"`
	PhaseFunctionType              PhaseFunctionType         `json:"PhaseFunctionType"`
	Databases                      []DatabaseKind            `json:"Databases"`
	RussianRouletteWeightThreshold Real                      `json:"RussianRouletteWeightThreshold"`
	TrackStatistics                bool                      `json:"TrackStatistics"`
	SimulationIndex                int                       `json:"SimulationIndex"`
	PhotonsPerBatch                int                       `json:"PhotonsPerBatch,omitempty"`
}

// SimulationInput is everything one transport run needs.
type SimulationInput struct {
	N              int64
	OutputName     string
	Options        SimulationOptions
	Source         Source
	Tissue         Tissue
	DetectorInputs []DetectorInput
}

type simulationInputJSON struct {
	N              int64             `json:"N"`
	OutputName     string            `json:"OutputName"`
	Options        SimulationOptions `json:"Options"`
	SourceInput    json.RawMessage   `json:"SourceInput"`
	TissueInput    json.RawMessage   `json:"TissueInput"`
	DetectorInputs []json.RawMessage `json:"DetectorInputs"`
}

// PostProcessorInput re-tallies a recorded database.
type PostProcessorInput struct {
	VirtualBoundaryType VirtualBoundaryType
	// InputFolder holds the databases, relative to the output directory of the
	// simulation that wrote them.
	InputFolder    string
	DatabaseName   string
	OutputName     string
	DetectorInputs []DetectorInput
}

type postProcessorInputJSON struct {
	VirtualBoundaryType VirtualBoundaryType `json:"VirtualBoundaryType"`
	InputFolder         string              `json:"InputFolder"`
	DatabaseName        string              `json:"DatabaseName,omitempty"`
	OutputName          string              `json:"OutputName"`
	DetectorInputs      []json.RawMessage   `json:"DetectorInputs"`
}

// typed is the discriminator probe used by every registry.
type typed struct {
	SourceType string `json:"SourceType"`
	TissueType string `json:"TissueType"`
	RegionType string `json:"RegionType"`
	TallyType  string `json:"TallyType"`
}

func probe(raw json.RawMessage) (typed, error) {
	var t typed
	err := json.Unmarshal(raw, &t)
	return t, err
}

// withType marshals v and adds the discriminator key.
func withType(v any, key, value string) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m[key], _ = json.Marshal(value)
	return json.Marshal(m)
}

func decodeAs[T any](raw json.RawMessage) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

var sourceRegistry = map[string]func(json.RawMessage) (Source, error){
	"DirectionalPoint": func(raw json.RawMessage) (Source, error) { return decodeAs[DirectionalPointSource](raw) },
	"IsotropicPoint":   func(raw json.RawMessage) (Source, error) { return decodeAs[IsotropicPointSource](raw) },
	"FlatCircular":     func(raw json.RawMessage) (Source, error) { return decodeAs[FlatCircularSource](raw) },
}

var regionRegistry = map[string]func(json.RawMessage) (Region, error){
	"Layer":     func(raw json.RawMessage) (Region, error) { return decodeAs[LayerRegion](raw) },
	"Voxel":     func(raw json.RawMessage) (Region, error) { return decodeAs[VoxelRegion](raw) },
	"Ellipsoid": func(raw json.RawMessage) (Region, error) { return decodeAs[EllipsoidRegion](raw) },
}

var tissueRegistry = map[string]func(json.RawMessage) (Tissue, error){
	"MultiLayer": func(raw json.RawMessage) (Tissue, error) { return decodeAs[MultiLayerTissue](raw) },
	"SingleInclusion": func(raw json.RawMessage) (Tissue, error) {
		var w struct {
			Layers    []*LayerRegion  `json:"Layers"`
			Inclusion json.RawMessage `json:"Inclusion"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		inc, err := decodeRegion(w.Inclusion)
		if err != nil {
			return nil, err
		}
		return &SingleInclusionTissue{MultiLayerTissue: MultiLayerTissue{Layers: w.Layers}, Inclusion: inc}, nil
	},
}

func decodeSource(raw json.RawMessage) (Source, error) {
	t, err := probe(raw)
	if err != nil {
		return nil, err
	}
	dec, ok := sourceRegistry[t.SourceType]
	if !ok {
		return nil, invalid("SourceInput.SourceType", "unknown source type %q", t.SourceType)
	}
	return dec(raw)
}

func decodeRegion(raw json.RawMessage) (Region, error) {
	t, err := probe(raw)
	if err != nil {
		return nil, err
	}
	dec, ok := regionRegistry[t.RegionType]
	if !ok {
		return nil, invalid("TissueInput.Inclusion.RegionType", "unknown region type %q", t.RegionType)
	}
	return dec(raw)
}

func decodeTissue(raw json.RawMessage) (Tissue, error) {
	t, err := probe(raw)
	if err != nil {
		return nil, err
	}
	dec, ok := tissueRegistry[t.TissueType]
	if !ok {
		return nil, invalid("TissueInput.TissueType", "unknown tissue type %q", t.TissueType)
	}
	return dec(raw)
}

func decodeDetectorInputs(raws []json.RawMessage) ([]DetectorInput, error) {
	out := make([]DetectorInput, 0, len(raws))
	for i, raw := range raws {
		t, err := probe(raw)
		if err != nil {
			return nil, err
		}
		dec, ok := detectorInputRegistry[t.TallyType]
		if !ok {
			return nil, invalid(fmt.Sprintf("DetectorInputs[%d].TallyType", i), "unknown tally type %q", t.TallyType)
		}
		in, err := dec(raw)
		if err != nil {
			return nil, fmt.Errorf("DetectorInputs[%d]: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

func encodeDetectorInputs(inputs []DetectorInput) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(inputs))
	for i, in := range inputs {
		raw, err := withType(in, "TallyType", in.TallyType())
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func encodeTissue(t Tissue) (json.RawMessage, error) {
	switch v := t.(type) {
	case *MultiLayerTissue:
		return withType(v, "TissueType", v.TissueType())
	case *SingleInclusionTissue:
		inc, err := withType(v.Inclusion, "RegionType", v.Inclusion.RegionType())
		if err != nil {
			return nil, err
		}
		return withType(struct {
			Layers    []*LayerRegion  `json:"Layers"`
			Inclusion json.RawMessage `json:"Inclusion"`
		}{v.Layers, inc}, "TissueType", v.TissueType())
	}
	return nil, fmt.Errorf("unsupported tissue %T", t)
}

func (in *SimulationInput) UnmarshalJSON(data []byte) error {
	var w simulationInputJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	src, err := decodeSource(w.SourceInput)
	if err != nil {
		return err
	}
	tissue, err := decodeTissue(w.TissueInput)
	if err != nil {
		return err
	}
	dets, err := decodeDetectorInputs(w.DetectorInputs)
	if err != nil {
		return err
	}
	*in = SimulationInput{
		N:              w.N,
		OutputName:     w.OutputName,
		Options:        w.Options,
		Source:         src,
		Tissue:         tissue,
		DetectorInputs: dets,
	}
	return nil
}

func (in SimulationInput) MarshalJSON() ([]byte, error) {
	if in.Source == nil || in.Tissue == nil {
		return nil, fmt.Errorf("simulation input needs a source and a tissue")
	}
	src, err := withType(in.Source, "SourceType", in.Source.SourceType())
	if err != nil {
		return nil, err
	}
	tissue, err := encodeTissue(in.Tissue)
	if err != nil {
		return nil, err
	}
	dets, err := encodeDetectorInputs(in.DetectorInputs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(simulationInputJSON{
		N:              in.N,
		OutputName:     in.OutputName,
		Options:        in.Options,
		SourceInput:    src,
		TissueInput:    tissue,
		DetectorInputs: dets,
	})
}

func (in *PostProcessorInput) UnmarshalJSON(data []byte) error {
	var w postProcessorInputJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	dets, err := decodeDetectorInputs(w.DetectorInputs)
	if err != nil {
		return err
	}
	*in = PostProcessorInput{
		VirtualBoundaryType: w.VirtualBoundaryType,
		InputFolder:         w.InputFolder,
		DatabaseName:        w.DatabaseName,
		OutputName:          w.OutputName,
		DetectorInputs:      dets,
	}
	return nil
}

func (in PostProcessorInput) MarshalJSON() ([]byte, error) {
	dets, err := encodeDetectorInputs(in.DetectorInputs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(postProcessorInputJSON{
		VirtualBoundaryType: in.VirtualBoundaryType,
		InputFolder:         in.InputFolder,
		DatabaseName:        in.DatabaseName,
		OutputName:          in.OutputName,
		DetectorInputs:      dets,
	})
}

func (in *SimulationInput) applyDefaults() {
	o := &in.Options
	if o.RandomNumberGeneratorType == "" {
		o.RandomNumberGeneratorType = MersenneTwister
	}
	if o.AbsorptionWeightingType == "" {
		o.AbsorptionWeightingType = Continuous
	}
	if o.PhaseFunctionType == "" {
		o.PhaseFunctionType = HenyeyGreenstein
	}
	if o.PhotonsPerBatch <= 0 {
		o.PhotonsPerBatch = DefaultPhotonsPerBatch
	}
	if in.OutputName == "" {
		in.OutputName = "results"
	}
}

// LoadSimulationInput reads, defaults and validates a JSON simulation input.
func LoadSimulationInput(path string) (*SimulationInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("read "+path, err)
	}
	var in SimulationInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, ErrConfiguration, err)
	}
	in.applyDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	DebugLog("Loaded simulation input from %s: N=%d, tissue=%s, source=%s, detectors=%d, awt=%s",
		path, in.N, in.Tissue.TissueType(), in.Source.SourceType(), len(in.DetectorInputs), in.Options.AbsorptionWeightingType)
	return &in, nil
}

// LoadPostProcessorInput reads and defaults a JSON post-processor input.
func LoadPostProcessorInput(path string) (*PostProcessorInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("read "+path, err)
	}
	var in PostProcessorInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, ErrConfiguration, err)
	}
	if in.OutputName == "" {
		in.OutputName = "postprocessed"
	}
	DebugLog("Loaded post-processor input from %s: vb=%s, folder=%s, detectors=%d",
		path, in.VirtualBoundaryType, in.InputFolder, len(in.DetectorInputs))
	return &in, nil
}

// SaveSimulationInput writes in as indented JSON.
func SaveSimulationInput(path string, in *SimulationInput) error {
	return writeJSON(path, in)
}
