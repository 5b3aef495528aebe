// Package instrumentation provides OpenTelemetry instrumentation for the
// authorization server library.
//
// It exposes metrics (counters and histograms covering token issuance,
// grant processing, client registration, and storage operations) and
// distributed tracing across the HTTP, server, and storage layers.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-authorization-server",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// When Enabled is false, no-op providers are installed and instrumented
// code paths carry no overhead. Custom meter and tracer providers can be
// supplied through the Config for wiring real exporters.
package instrumentation
