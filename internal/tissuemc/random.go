package tissuemc

import (
	"math/rand/v2"
	"time"

	"github.com/seehuhn/mt19937"
)

// RandomNumberGeneratorType selects the pseudo-random stream implementation.
type RandomNumberGeneratorType string

const (
	MersenneTwister RandomNumberGeneratorType = "MersenneTwister"
	PCG             RandomNumberGeneratorType = "PCG"
)

// RandomSource is a repeatable uniform [0,1) stream.
type RandomSource interface {
	NextDouble() Real
}

type mersenneTwisterSource struct{ mt *mt19937.MT19937 }

func (s *mersenneTwisterSource) NextDouble() Real {
	return Real(s.mt.Uint64()>>11) * (1.0 / (1 << 53))
}

type pcgSource struct{ r *rand.Rand }

func (s *pcgSource) NextDouble() Real { return s.r.Float64() }

// NewRandomSource returns stream number stream of generator kind seeded with seed.
// Stream 0 is the plain seeded generator; other streams are distinct and
// deterministic. A negative seed draws a time-derived seed.
func NewRandomSource(kind RandomNumberGeneratorType, seed int64, stream uint64) (RandomSource, error) {
	if seed < 0 {
		seed = time.Now().UnixNano() ^ int64(stream*0x9e3779b97f4a7c15)
	}
	switch kind {
	case MersenneTwister, "":
		mt := mt19937.New()
		if stream == 0 {
			mt.Seed(seed)
		} else {
			mt.SeedFromSlice([]uint64{uint64(seed), stream})
		}
		return &mersenneTwisterSource{mt: mt}, nil
	case PCG:
		return &pcgSource{r: rand.New(rand.NewPCG(uint64(seed), stream))}, nil
	}
	return nil, invalid("Options.RandomNumberGeneratorType", "unknown generator %q", string(kind))
}

// openUniform draws from (0,1): zero draws are resampled.
func openUniform(rng RandomSource) Real {
	for {
		if xi := rng.NextDouble(); xi > 0 {
			return xi
		}
	}
}
