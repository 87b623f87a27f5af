package observability

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestWriteSamplerKeepsEveryWrite(t *testing.T) {
	s := WriteSampler(0)
	tid := trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 1}
	for name, want := range map[string]sdktrace.SamplingDecision{
		"Documents.Document.Update":         sdktrace.RecordAndSample,
		"Documents.Association.Delete":      sdktrace.RecordAndSample,
		"Documents.Document.GetVersion":     sdktrace.Drop,
		"Documents.Association.ListParents": sdktrace.Drop,
	} {
		got := s.ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: tid, Name: name})
		if got.Decision != want {
			t.Fatalf("%s: want=%v got=%v", name, want, got.Decision)
		}
	}
}

func TestWriteSamplerSpansReachExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(WriteSampler(0))),
		sdktrace.WithSyncer(exp),
	)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer("test")
	_, write := tracer.Start(context.Background(), "Documents.Document.Delete")
	write.End()
	_, read := tracer.Start(context.Background(), "Documents.Document.Get")
	read.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "Documents.Document.Delete" {
		t.Fatalf("exported spans: got=%d", len(spans))
	}
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0.1, 0: 0.1, 0.25: 0.25, 3: 1} {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v): want=%v got=%v", in, want, got)
		}
	}
}
