package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/lukaszgryglicki/tissuemc/internal/tissuemc"
)

const usage = "usage: tissuemc run <input.json> | tissuemc postprocess <input.json>"

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := tissuemc.ParseRuntimeConfig()
	if err != nil {
		return err
	}
	tissuemc.Debug = cfg.Debug
	tissuemc.Progress = cfg.Progress
	tissuemc.Logger = log.New(os.Stderr, "", 0)

	if cfg.Profile != "" {
		f, err := os.Create(cfg.Profile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	if len(os.Args) < 3 {
		return fmt.Errorf("%s", usage)
	}
	cmd, path := os.Args[1], os.Args[2]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := tissuemc.SetupTracing(ctx, "tissuemc", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	return runCommand(ctx, cfg, cmd, path)
}

// runCommand runs one command. Both commands resolve their folders against
// cfg.OutputDir, so postprocess finds what run wrote.
func runCommand(ctx context.Context, cfg tissuemc.RuntimeConfig, cmd, path string) error {
	switch cmd {
	case "run":
		in, err := tissuemc.LoadSimulationInput(path)
		if err != nil {
			return err
		}
		out, err := tissuemc.RunSimulation(ctx, in, tissuemc.RunOptions{Workers: cfg.Workers, OutputDir: cfg.OutputDir})
		if err != nil {
			return err
		}
		tissuemc.DebugLog("Simulation %s done in %s", in.OutputName, out.Elapsed)
		if out.Statistics != nil {
			fmt.Print(out.Statistics.String())
		}
	case "postprocess":
		in, err := tissuemc.LoadPostProcessorInput(path)
		if err != nil {
			return err
		}
		out, err := tissuemc.PostProcess(ctx, in, cfg.OutputDir)
		if err != nil {
			return err
		}
		tissuemc.DebugLog("Post-processing %s done in %s", in.OutputName, out.Elapsed)
	default:
		return fmt.Errorf("unknown command %q; %s", cmd, usage)
	}
	return nil
}
