package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitProvider_InstallsGlobalsAndShutsDown(t *testing.T) {
	// Swaps the global providers; not parallel.
	prevMP := otel.GetMeterProvider()
	prevTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	if otel.GetMeterProvider() == prevMP {
		t.Error("meter provider was not replaced")
	}
	if otel.GetTracerProvider() == prevTP {
		t.Error("tracer provider was not replaced")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
