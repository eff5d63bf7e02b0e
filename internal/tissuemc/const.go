package tissuemc

type Real = float64

const (
	// SpeedOfLight in vacuum, mm/ns.
	SpeedOfLight = 299.792458
	// RouletteChance is the survival probability of a photon selected for Russian roulette.
	RouletteChance = 0.1
	// MaxPhotonPathLength in mm; longer histories are killed.
	MaxPhotonPathLength = 2000.0
	// MaxPhotonCollisions per history.
	MaxPhotonCollisions = 100_000_000
	// DefaultPhotonsPerBatch is the number of histories drawn from one RNG stream.
	DefaultPhotonsPerBatch = 10_000
	// DatabaseVersion of the native binary history layout.
	DatabaseVersion = 1
	// ZRDVersion written into compatible ray databases.
	ZRDVersion = 2002
	// hot-loop constants
	epsDist       = 1e-10
	epsDirection  = 1e-12
	cosNinety     = 1e-6
	isotropicG    = 1e-6
	writerBufSize = 1 << 20
)
