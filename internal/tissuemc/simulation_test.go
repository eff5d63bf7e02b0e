package tissuemc

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func run(t *testing.T, in *SimulationInput, opts RunOptions) *SimulationOutput {
	t.Helper()
	out, err := RunSimulation(context.Background(), in, opts)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func result(t *testing.T, out *SimulationOutput, name string) *DetectorResult {
	t.Helper()
	r := out.Result(name)
	if r == nil {
		t.Fatalf("no detector %q in output", name)
	}
	return r
}

func TestEnergyConservation(t *testing.T) {
	op := OpticalProperties{Mua: 0.1, Mus: 10, G: 0.8, N: 1.4}
	for _, awt := range []AbsorptionWeightingType{Analog, Discrete, Continuous} {
		in := slabInput(2000, 1, op, 1, awt,
			RDiffuseDetectorInput{common("R")},
			TDiffuseDetectorInput{common("T")},
			RSpecularDetectorInput{common("Rs")},
			ATotalDetectorInput{common("A")},
		)
		out := run(t, in, quietRun(2))
		r, tr := result(t, out, "R").Mean[0], result(t, out, "T").Mean[0]
		rs, a := result(t, out, "Rs").Mean[0], result(t, out, "A").Mean[0]
		if !nearly(rs, 1.0/36, 1e-12) {
			t.Fatalf("%s: specular reflectance = %g", awt, rs)
		}
		if sum := r + tr + rs + a; !nearly(sum, 1, 1e-9) {
			t.Fatalf("%s: R+T+Rs+A = %.12f (R=%g T=%g A=%g)", awt, sum, r, tr, a)
		}
		st := out.Statistics
		if st == nil || st.NumberOfPhotons != 2000 {
			t.Fatalf("%s: statistics = %+v", awt, st)
		}
		ended := st.NumberOfPhotonsOutTopOfTissue + st.NumberOfPhotonsOutBottomOfTissue + st.NumberOfPhotonsAbsorbed +
			st.NumberOfPhotonsKilledByRussianRoulette + st.NumberOfPhotonsKilledOverMaximumPathLength + st.NumberOfPhotonsKilledOverMaximumCollisions
		if ended != st.NumberOfPhotons {
			t.Fatalf("%s: %d histories ended, want %d", awt, ended, st.NumberOfPhotons)
		}
		if !nearly(st.DiffuseReflectance, r, 1e-12) || !nearly(st.SpecularReflectance, rs, 1e-12) {
			t.Fatalf("%s: statistics disagree with detectors: %g vs %g", awt, st.DiffuseReflectance, r)
		}
		if awt != Analog && st.NumberOfPhotonsAbsorbed != 0 {
			t.Fatalf("%s: weighted photons can only leave the slab, %d absorbed", awt, st.NumberOfPhotonsAbsorbed)
		}
	}
}

func TestTransmittanceThroughMismatchedSlab(t *testing.T) {
	op := OpticalProperties{Mua: 0, Mus: 10, G: 0, N: 1.4}
	trans := func(nAmbient Real) (Real, Real) {
		in := slabInput(4000, 1, op, nAmbient, Continuous,
			RDiffuseDetectorInput{common("R")},
			TDiffuseDetectorInput{common("T")},
			RSpecularDetectorInput{common("Rs")},
		)
		out := run(t, in, quietRun(2))
		r, tr, rs := result(t, out, "R").Mean[0], result(t, out, "T").Mean[0], result(t, out, "Rs").Mean[0]
		if sum := r + tr + rs; !nearly(sum, 1, 1e-9) {
			t.Fatalf("ambient n=%g: R+T+Rs = %.12f", nAmbient, sum)
		}
		return tr, result(t, out, "T").StandardDeviation()[0]
	}
	matched, _ := trans(1.4)
	mismatched, sd := trans(1)
	if mismatched <= 0 || sd <= 0 {
		t.Fatalf("no light transmitted through an index mismatched bottom surface: T=%g", mismatched)
	}
	if ratio := mismatched / matched; ratio < 0.5 || ratio > 1.5 {
		t.Fatalf("T = %g with ambient n=1, %g with matched ambient", mismatched, matched)
	}
}

func TestSingleInclusionTransport(t *testing.T) {
	layer := OpticalProperties{Mua: 0.1, Mus: 10, G: 0.8, N: 1.4}
	absorbing := OpticalProperties{Mua: 1, Mus: 10, G: 0.8, N: 1.4}
	detectors := func() []DetectorInput {
		return []DetectorInput{
			RDiffuseDetectorInput{common("R")},
			TDiffuseDetectorInput{common("T")},
			RSpecularDetectorInput{common("Rs")},
			ATotalDetectorInput{common("A")},
		}
	}
	base := slabInput(3000, 2, layer, 1, Continuous, detectors()...)
	plain := run(t, base, quietRun(2))

	inclusions := map[string]func(op OpticalProperties) Region{
		"ellipsoid": func(op OpticalProperties) Region {
			return &EllipsoidRegion{Center: Position{Z: 1}, Dx: 0.5, Dy: 0.5, Dz: 0.5, RegionOP: op}
		},
		"voxel": func(op OpticalProperties) Region {
			return &VoxelRegion{X: NewDoubleRange(-0.5, 0.5, 2), Y: NewDoubleRange(-0.5, 0.5, 2), Z: NewDoubleRange(0.5, 1.5, 2), RegionOP: op}
		},
	}
	for name, mk := range inclusions {
		for _, c := range []struct {
			label string
			op    OpticalProperties
		}{{"same", layer}, {"absorbing", absorbing}} {
			tissue, err := NewSingleInclusionTissue(mk(c.op), slabTissue(2, layer, 1).Layers...)
			if err != nil {
				t.Fatal(err)
			}
			in := slabInput(3000, 2, layer, 1, Continuous, detectors()...)
			in.Tissue = tissue
			out := run(t, in, quietRun(2))
			r, tr := result(t, out, "R").Mean[0], result(t, out, "T").Mean[0]
			rs, a := result(t, out, "Rs").Mean[0], result(t, out, "A").Mean[0]
			if sum := r + tr + rs + a; !nearly(sum, 1, 1e-9) {
				t.Fatalf("%s %s: R+T+Rs+A = %.12f", name, c.label, sum)
			}
			if tr <= 0 {
				t.Fatalf("%s %s: no transmitted light", name, c.label)
			}
			switch c.label {
			case "same":
				for _, d := range []string{"R", "T"} {
					got, want := result(t, out, d), result(t, plain, d)
					sd := math.Hypot(got.StandardDeviation()[0], want.StandardDeviation()[0])
					if math.Abs(got.Mean[0]-want.Mean[0]) > 4*sd {
						t.Fatalf("%s matching the layer: %s = %g, layer only %g +/- %g", name, d, got.Mean[0], want.Mean[0], sd)
					}
				}
			case "absorbing":
				if a <= result(t, plain, "A").Mean[0] {
					t.Fatalf("%s absorbing inclusion: A = %g, layer only %g", name, a, result(t, plain, "A").Mean[0])
				}
			}
		}
	}
}

func TestTimeDerivedSeedIsSaved(t *testing.T) {
	dir := t.TempDir()
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	in := slabInput(300, 5, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
	in.Options.Seed = -1
	opts := quietRun(2)
	opts.OutputDir = dir
	out := run(t, in, opts)
	saved, err := LoadSimulationInput(filepath.Join(dir, in.OutputName, in.OutputName+".txt"))
	if err != nil {
		t.Fatal(err)
	}
	if saved.Options.Seed < 0 || saved.Options.Seed != in.Options.Seed {
		t.Fatalf("saved seed %d, run used %d", saved.Options.Seed, in.Options.Seed)
	}
	again := run(t, saved, quietRun(1))
	if got, want := result(t, again, "R").Mean[0], result(t, out, "R").Mean[0]; got != want {
		t.Fatalf("rerun from saved input: R = %g, want %g", got, want)
	}
}

// twoFlux solves the one dimensional forward/backward transport equations
// of a slab of thickness d for a normally incident beam.
func twoFlux(op OpticalProperties, d Real) (r, t Real) {
	back := op.Mus * (1 - op.G) / 2
	a := op.Mua + back
	k := math.Sqrt(a*a - back*back)
	s, c := math.Sinh(k*d), math.Cosh(k*d)
	den := a*s + k*c
	return back * s / den, k / den
}

func TestBidirectionalMatchesTwoFlux(t *testing.T) {
	op := OpticalProperties{Mua: 0.1, Mus: 1, G: 0.5, N: 1}
	wantR, wantT := twoFlux(op, 2)
	for _, awt := range []AbsorptionWeightingType{Analog, Discrete, Continuous} {
		in := slabInput(20000, 2, op, 1, awt,
			RDiffuseDetectorInput{common("R")},
			TDiffuseDetectorInput{common("T")},
		)
		in.Options.PhaseFunctionType = Bidirectional
		out := run(t, in, quietRun(4))
		for _, c := range []struct {
			name string
			want Real
		}{{"R", wantR}, {"T", wantT}} {
			res := result(t, out, c.name)
			sd := res.StandardDeviation()[0]
			if sd <= 0 || math.Abs(res.Mean[0]-c.want) > 4*sd {
				t.Fatalf("%s %s = %g +/- %g, two-flux %g", awt, c.name, res.Mean[0], sd, c.want)
			}
		}
	}
}

func TestResultsIndependentOfWorkers(t *testing.T) {
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	mk := func() *SimulationInput {
		in := slabInput(3000, 10, op, 1, Continuous,
			ROfRhoDetectorInput{DetectorCommon: common("ROfRho"), Rho: NewDoubleRange(0, 10, 21)},
			ATotalDetectorInput{common("A")},
			ROfFxDetectorInput{DetectorCommon: common("ROfFx"), Fx: NewDoubleRange(0, 0.5, 6)},
		)
		in.Options.PhotonsPerBatch = 250
		in.Options.Seed = 11
		return in
	}
	one := run(t, mk(), quietRun(1))
	four := run(t, mk(), quietRun(4))
	for i, r := range one.Detectors {
		o := four.Detectors[i]
		if len(r.Mean) != len(o.Mean) || r.TallyCount != o.TallyCount {
			t.Fatalf("%s: shape differs between worker counts", r.Name)
		}
		for j := range r.Mean {
			if r.Mean[j] != o.Mean[j] || r.SecondMoment[j] != o.SecondMoment[j] {
				t.Fatalf("%s[%d]: %v (1 worker) != %v (4 workers)", r.Name, j, r.Mean[j], o.Mean[j])
			}
		}
	}
	if one.Statistics.BatchReflectanceMean != four.Statistics.BatchReflectanceMean {
		t.Fatal("batch statistics depend on the worker count")
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	a := slabInput(500, 10, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
	b := slabInput(500, 10, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
	b.Options.Seed = 1
	ra := run(t, a, quietRun(1)).Result("R").Mean[0]
	rb := run(t, b, quietRun(1)).Result("R").Mean[0]
	if ra == rb {
		t.Fatalf("seeds 0 and 1 gave identical reflectance %g", ra)
	}
}

func TestStandardDeviationScaling(t *testing.T) {
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	sd := func(n int64) Real {
		in := slabInput(n, 10, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
		in.Options.PhotonsPerBatch = 250
		return run(t, in, quietRun(2)).Result("R").StandardDeviation()[0]
	}
	s1, s4 := sd(1000), sd(4000)
	if ratio := s1 / s4; ratio < 1.6 || ratio > 2.5 {
		t.Fatalf("sd(1000)/sd(4000) = %g, want about 2", ratio)
	}
}

func TestSemiInfiniteReflectance(t *testing.T) {
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	in := slabInput(2000, 20, op, 1, Continuous,
		RDiffuseDetectorInput{common("R")},
		ROfRhoDetectorInput{DetectorCommon: common("ROfRho"), Rho: NewDoubleRange(0, 10, 101)},
	)
	out := run(t, in, quietRun(0))
	rd := result(t, out, "R").Mean[0]
	if rd < 0.48 || rd > 0.65 {
		t.Fatalf("diffuse reflectance %g outside [0.48, 0.65]", rd)
	}
	rho := result(t, out, "ROfRho")
	if rho.Mean[0] <= rho.Mean[50] {
		t.Fatalf("R(rho) must fall off with rho: %g at 0.05mm vs %g at 5mm", rho.Mean[0], rho.Mean[50])
	}
	if rho.OutOfRange == 0 {
		t.Fatal("some photons must exit beyond 10 mm")
	}
}

func TestRunSimulationCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := slabInput(1000, 1, NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4), 1, Continuous, RDiffuseDetectorInput{common("R")})
	if _, err := RunSimulation(ctx, in, quietRun(2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunSimulationRejectsBadInput(t *testing.T) {
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	in := slabInput(0, 1, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
	if _, err := RunSimulation(context.Background(), in, quietRun(1)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("N=0: expected configuration error, got %v", err)
	}
	in = slabInput(10, 1, op, 1, Continuous, RDiffuseDetectorInput{common("R")})
	in.Options.Databases = []DatabaseKind{DiffuseReflectanceDatabase}
	if _, err := RunSimulation(context.Background(), in, quietRun(1)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("databases without output directory: expected configuration error, got %v", err)
	}
}

func TestRunSimulationWritesResults(t *testing.T) {
	dir := t.TempDir()
	op := NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4)
	in := slabInput(500, 5, op, 1, Continuous,
		ROfRhoDetectorInput{DetectorCommon: common("ROfRho"), Rho: NewDoubleRange(0, 5, 11)},
		ATotalDetectorInput{DetectorCommon: DetectorCommon{Name: "A"}},
	)
	opts := quietRun(2)
	opts.OutputDir = dir
	out := run(t, in, opts)

	resultDir := filepath.Join(dir, in.OutputName)
	got, err := ReadResult(resultDir, "ROfRho")
	if err != nil {
		t.Fatal(err)
	}
	want := result(t, out, "ROfRho")
	if got.TallyType != "ROfRho" || len(got.Mean) != 10 || got.SecondMoment == nil {
		t.Fatalf("read back %+v", got)
	}
	for i := range want.Mean {
		if got.Mean[i] != want.Mean[i] || got.SecondMoment[i] != want.SecondMoment[i] {
			t.Fatalf("bin %d: read %g, wrote %g", i, got.Mean[i], want.Mean[i])
		}
	}
	a, err := ReadResult(resultDir, "A")
	if err != nil {
		t.Fatal(err)
	}
	if a.SecondMoment != nil {
		t.Fatal("second moment written although not tallied")
	}
	st, err := ReadStatistics(resultDir)
	if err != nil || st.NumberOfPhotons != 500 {
		t.Fatalf("statistics: %+v, %v", st, err)
	}
	saved, err := LoadSimulationInput(filepath.Join(resultDir, in.OutputName+".txt"))
	if err != nil {
		t.Fatal(err)
	}
	if saved.N != in.N || len(saved.DetectorInputs) != 2 {
		t.Fatalf("saved input = %+v", saved)
	}
}
