package tissuemc

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RunOptions are runtime knobs that do not change results.
type RunOptions struct {
	// Workers running photon batches; <= 0 means runtime.NumCPU().
	Workers int
	// OutputDir receives <OutputName>/ with results and databases. Empty
	// keeps everything in memory; databases then cannot be written.
	OutputDir string
	// Logger for progress and warnings; nil uses the package Logger.
	Logger *log.Logger
}

// SimulationOutput holds normalized detector results in input order.
type SimulationOutput struct {
	Input     *SimulationInput
	Detectors []*DetectorResult
	// Statistics is set when Options.TrackStatistics is on.
	Statistics *SimulationStatistics
	Elapsed    time.Duration
}

// Result returns the detector named name, or nil.
func (o *SimulationOutput) Result(name string) *DetectorResult {
	for _, r := range o.Detectors {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// RunSimulation runs in.N photon histories. Histories are grouped in batches
// of Options.PhotonsPerBatch; batch b draws from random stream b and batches
// are merged in index order, so results do not depend on Workers.
func RunSimulation(ctx context.Context, in *SimulationInput, opts RunOptions) (out *SimulationOutput, err error) {
	in.applyDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = Logger
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if in.Options.Seed < 0 {
		in.Options.Seed = time.Now().UnixNano() & (1<<62 - 1)
		logger.Printf("random seed: %d", in.Options.Seed)
	}
	o := in.Options
	ppb := int64(o.PhotonsPerBatch)
	nBatches := int((in.N + ppb - 1) / ppb)
	if workers > nBatches {
		workers = nBatches
	}

	ctx, span := startSpan(ctx, "tissuemc.RunSimulation",
		attribute.Int64("photons", in.N),
		attribute.Int("workers", workers),
		attribute.Int("batches", nBatches),
		attribute.String("absorption_weighting", string(o.AbsorptionWeightingType)),
	)
	defer span.End()

	tr, err := newTransport(in.Tissue, o.AbsorptionWeightingType, o.PhaseFunctionType, o.RussianRouletteWeightThreshold)
	if err != nil {
		return nil, err
	}
	detectors, err := createDetectors(in.DetectorInputs, tr.ops)
	if err != nil {
		return nil, err
	}
	// proto is only ever cloned; workers read it concurrently
	proto := newTallySet(detectors, o.Databases)
	total := proto.cloneEmpty()

	outDir := ""
	if opts.OutputDir != "" {
		outDir = filepath.Join(opts.OutputDir, in.OutputName)
	}
	var dbs *databaseSet
	if len(o.Databases) > 0 {
		if outDir == "" {
			return nil, invalid("Options.Databases", "databases need an output directory")
		}
		dbs, err = openDatabases(ctx, outDir, o.Databases, DatabaseHeader{
			NumberOfSubRegions:      len(tr.ops),
			OpticalProperties:       tr.ops,
			AbsorptionWeightingType: o.AbsorptionWeightingType,
		})
		if err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				dbs.abort()
			}
		}()
	}

	DebugLog("Running %d photons in %d batches on %d workers", in.N, nBatches, workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	done := make([]chan *tallySet, nBatches)
	for i := range done {
		done[i] = make(chan *tallySet, 1)
	}
	window := make(chan struct{}, 2*workers)
	next := make(chan int)

	g.Go(func() error {
		defer close(next)
		for b := 0; b < nBatches; b++ {
			select {
			case window <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case next <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for b := range next {
				n := min(ppb, in.N-int64(b)*ppb)
				ts, err := runBatch(gctx, tr, in.Source, proto, o, b, n)
				if err != nil {
					return err
				}
				done[b] <- ts
			}
			return nil
		})
	}

	g.Go(func() error {
		var merged int64
		nextPrint := max(in.N/100, 1)
		printed := int64(0)
		for b := 0; b < nBatches; b++ {
			var ts *tallySet
			select {
			case ts = <-done[b]:
			case <-gctx.Done():
				return gctx.Err()
			}
			<-window
			if err := total.merge(ts); err != nil {
				return err
			}
			if dbs != nil {
				if err := dbs.write(ts.records); err != nil {
					return err
				}
			}
			merged += ts.stats.NumberOfPhotons
			if Progress && merged/nextPrint > printed {
				printed = merged / nextPrint
				logger.Printf("[PROGRESS] %.2f%%", Real(merged)*100/Real(in.N))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if dbs != nil {
		if err := dbs.close(ctx, in.N); err != nil {
			return nil, err
		}
	}

	out = &SimulationOutput{Input: in, Elapsed: time.Since(start)}
	for _, d := range total.detectors {
		d.Normalize(in.N)
		r := d.Result()
		for _, w := range r.Warnings {
			logger.Printf("[WARNING] %s: %s", r.Name, w)
		}
		out.Detectors = append(out.Detectors, r)
	}
	total.stats.finalize()
	if o.TrackStatistics {
		st := total.stats
		out.Statistics = &st
		DebugLog("Statistics:\n%s", st.String())
	}
	DebugLog("Photons: %d, time: %s", in.N, out.Elapsed)

	if outDir != "" {
		if err := WriteResults(outDir, out); err != nil {
			return nil, err
		}
		if err := SaveSimulationInput(filepath.Join(outDir, in.OutputName+".txt"), in); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// runBatch simulates n histories of batch b into a fresh tally set.
func runBatch(ctx context.Context, tr *transport, src Source, proto *tallySet, o SimulationOptions, b int, n int64) (*tallySet, error) {
	_, span := startSpan(ctx, "tissuemc.batch", attribute.Int("batch", b), attribute.Int64("photons", n))
	defer span.End()
	rng, err := NewRandomSource(o.RandomNumberGeneratorType, o.Seed, uint64(b))
	if err != nil {
		return nil, err
	}
	DebugLogOnce("First batch: %d photons from %s stream %d", n, o.RandomNumberGeneratorType, b)
	ts := proto.cloneEmpty()
	for i := int64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch %d: %w", b, err)
		}
		p := tr.launch(src, rng, ts)
		tr.trace(p, rng, ts)
		ts.endHistory(p)
	}
	return ts, nil
}
