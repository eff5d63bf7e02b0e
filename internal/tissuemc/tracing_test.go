package tissuemc

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupTracingDisabled(t *testing.T) {
	for _, c := range []struct {
		endpoint string
		enabled  bool
	}{{"", true}, {"http://localhost:4318/v1/traces", false}} {
		shutdown, err := SetupTracing(context.Background(), "test", c.endpoint, c.enabled)
		if err != nil {
			t.Fatal(err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunSimulationSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	in := slabInput(300, 1, NewOpticalPropertiesFromMusp(0.01, 1, 0.8, 1.4), 1, Continuous, RDiffuseDetectorInput{common("R")})
	in.Options.PhotonsPerBatch = 100
	run(t, in, quietRun(2))

	counts := map[string]int{}
	for _, s := range rec.Ended() {
		counts[s.Name()]++
	}
	if counts["tissuemc.RunSimulation"] != 1 || counts["tissuemc.batch"] != 3 {
		t.Fatalf("spans = %v", counts)
	}
}
