package tissuemc

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// SimulationStatistics counts how photon histories ended.
type SimulationStatistics struct {
	NumberOfPhotons                            int64 `json:"NumberOfPhotons"`
	NumberOfPhotonsOutTopOfTissue              int64 `json:"NumberOfPhotonsOutTopOfTissue"`
	NumberOfPhotonsOutBottomOfTissue           int64 `json:"NumberOfPhotonsOutBottomOfTissue"`
	NumberOfPhotonsAbsorbed                    int64 `json:"NumberOfPhotonsAbsorbed"`
	NumberOfPhotonsSpecularReflected           int64 `json:"NumberOfPhotonsSpecularReflected"`
	NumberOfPhotonsKilledByRussianRoulette     int64 `json:"NumberOfPhotonsKilledByRussianRoulette"`
	NumberOfPhotonsKilledOverMaximumPathLength int64 `json:"NumberOfPhotonsKilledOverMaximumPathLength"`
	NumberOfPhotonsKilledOverMaximumCollisions int64 `json:"NumberOfPhotonsKilledOverMaximumCollisions"`
	NumericGuards                              int64 `json:"NumericGuards"`

	// Weight fractions, normalized by the number of photons.
	DiffuseReflectance   Real `json:"DiffuseReflectance"`
	DiffuseTransmittance Real `json:"DiffuseTransmittance"`
	SpecularReflectance  Real `json:"SpecularReflectance"`

	// Batch means of diffuse reflectance and their spread.
	BatchReflectanceMean   Real `json:"BatchReflectanceMean"`
	BatchReflectanceStdDev Real `json:"BatchReflectanceStdDev"`

	MeanCollisionsPerPhoton Real `json:"MeanCollisionsPerPhoton"`

	collisions int64
	batchR     []Real
}

func (s *SimulationStatistics) addSpecular(w Real) {
	s.NumberOfPhotonsSpecularReflected++
	s.SpecularReflectance += w
}

func (s *SimulationStatistics) addPhoton(p *Photon) {
	s.NumberOfPhotons++
	s.collisions += p.CollisionInfo.TotalCollisions()
	s.NumericGuards += int64(p.numericGuards)
	st := p.DP.StateFlag
	switch {
	case st.ExitedTop():
		s.NumberOfPhotonsOutTopOfTissue++
		s.DiffuseReflectance += p.DP.Weight
	case st.ExitedBottom():
		s.NumberOfPhotonsOutBottomOfTissue++
		s.DiffuseTransmittance += p.DP.Weight
	case st.Has(KilledRussianRoulette):
		s.NumberOfPhotonsKilledByRussianRoulette++
	case st.Has(KilledOverMaximumPathLength):
		s.NumberOfPhotonsKilledOverMaximumPathLength++
	case st.Has(KilledOverMaximumCollisions):
		s.NumberOfPhotonsKilledOverMaximumCollisions++
	case st.Has(Absorbed):
		s.NumberOfPhotonsAbsorbed++
	}
}

// merge adds a finished batch and records its reflectance as one batch mean.
func (s *SimulationStatistics) merge(o *SimulationStatistics) {
	s.NumberOfPhotons += o.NumberOfPhotons
	s.NumberOfPhotonsOutTopOfTissue += o.NumberOfPhotonsOutTopOfTissue
	s.NumberOfPhotonsOutBottomOfTissue += o.NumberOfPhotonsOutBottomOfTissue
	s.NumberOfPhotonsAbsorbed += o.NumberOfPhotonsAbsorbed
	s.NumberOfPhotonsSpecularReflected += o.NumberOfPhotonsSpecularReflected
	s.NumberOfPhotonsKilledByRussianRoulette += o.NumberOfPhotonsKilledByRussianRoulette
	s.NumberOfPhotonsKilledOverMaximumPathLength += o.NumberOfPhotonsKilledOverMaximumPathLength
	s.NumberOfPhotonsKilledOverMaximumCollisions += o.NumberOfPhotonsKilledOverMaximumCollisions
	s.NumericGuards += o.NumericGuards
	s.DiffuseReflectance += o.DiffuseReflectance
	s.DiffuseTransmittance += o.DiffuseTransmittance
	s.SpecularReflectance += o.SpecularReflectance
	s.collisions += o.collisions
	if o.NumberOfPhotons > 0 {
		s.batchR = append(s.batchR, o.DiffuseReflectance/Real(o.NumberOfPhotons))
	}
}

// finalize normalizes the weight sums.
func (s *SimulationStatistics) finalize() {
	if s.NumberOfPhotons == 0 {
		return
	}
	n := Real(s.NumberOfPhotons)
	s.DiffuseReflectance /= n
	s.DiffuseTransmittance /= n
	s.SpecularReflectance /= n
	s.MeanCollisionsPerPhoton = Real(s.collisions) / n
	switch len(s.batchR) {
	case 0:
	case 1:
		s.BatchReflectanceMean = s.batchR[0]
	default:
		s.BatchReflectanceMean, s.BatchReflectanceStdDev = stat.MeanStdDev(s.batchR, nil)
	}
}

func (s *SimulationStatistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "photons: %d\n", s.NumberOfPhotons)
	fmt.Fprintf(&b, "out top: %d, out bottom: %d, absorbed: %d, specular: %d\n",
		s.NumberOfPhotonsOutTopOfTissue, s.NumberOfPhotonsOutBottomOfTissue, s.NumberOfPhotonsAbsorbed, s.NumberOfPhotonsSpecularReflected)
	fmt.Fprintf(&b, "killed: roulette %d, path length %d, collisions %d; numeric guards %d\n",
		s.NumberOfPhotonsKilledByRussianRoulette, s.NumberOfPhotonsKilledOverMaximumPathLength,
		s.NumberOfPhotonsKilledOverMaximumCollisions, s.NumericGuards)
	fmt.Fprintf(&b, "Rd=%.6f Td=%.6f Rs=%.6f (batch Rd %.6f +/- %.6f)\n",
		s.DiffuseReflectance, s.DiffuseTransmittance, s.SpecularReflectance, s.BatchReflectanceMean, s.BatchReflectanceStdDev)
	return b.String()
}
