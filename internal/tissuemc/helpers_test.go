package tissuemc

import (
	"io"
	"log"
	"math"
)

func nearly(a, b, tol Real) bool { return math.Abs(a-b) <= tol }

func quietRun(workers int) RunOptions {
	return RunOptions{Workers: workers, Logger: log.New(io.Discard, "", 0)}
}

// slabTissue is one tissue layer of thickness d between ambient media of index nAmbient.
func slabTissue(d Real, op OpticalProperties, nAmbient Real) *MultiLayerTissue {
	air := OpticalProperties{N: nAmbient}
	return NewMultiLayerTissue(
		NewLayerRegion(-1, 0, air),
		NewLayerRegion(0, d, op),
		NewLayerRegion(d, d+1, air),
	)
}

func slabInput(n int64, d Real, op OpticalProperties, nAmbient Real, awt AbsorptionWeightingType, detectors ...DetectorInput) *SimulationInput {
	return &SimulationInput{
		N:          n,
		OutputName: "test",
		Options: SimulationOptions{
			Seed:                      0,
			RandomNumberGeneratorType: MersenneTwister,
			AbsorptionWeightingType:   awt,
			PhaseFunctionType:         HenyeyGreenstein,
			PhotonsPerBatch:           500,
			TrackStatistics:           true,
		},
		Source:         NewDirectionalPointSource(Position{}, DirectionAlongPositiveZ),
		Tissue:         slabTissue(d, op, nAmbient),
		DetectorInputs: detectors,
	}
}

func common(name string) DetectorCommon { return DetectorCommon{Name: name, TallySecondMoment: true} }

// fixedRandom replays a fixed sequence of draws, then repeats the last one.
type fixedRandom struct {
	draws []Real
	i     int
}

func (f *fixedRandom) NextDouble() Real {
	if f.i >= len(f.draws) {
		return f.draws[len(f.draws)-1]
	}
	v := f.draws[f.i]
	f.i++
	return v
}
