// Package telemetry provides OpenTelemetry instrumentation for legisrag.
//
// # Overview
//
// New installs an OTLP tracer provider and, optionally, a meter provider as
// the process-wide otel providers. Packages instrument themselves through
// otel.Tracer and otel.Meter, so nothing else needs a *Telemetry.
//
// # Usage
//
//	cfg := telemetry.FromObservability(appCfg.Observability, version)
//	tel, err := telemetry.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Configuration
//
//	observability:
//	  enable_telemetry: true
//	  otlp_endpoint: "localhost:4317"
//	  otlp_protocol: grpc  # or http
//	  otlp_insecure: true  # only allowed for local endpoints
//	  sample_rate: 1.0
//
// # Error Handling
//
// Exporter setup failures do not stop the service. The instance is marked
// degraded and the no-op providers remain in place.
//
// # Testing
//
//	rec := telemetry.NewRecorder()
//	rec.Install(t)
//	// exercise instrumented code
//	attrs := rec.Attrs(t, "Retriever.Retrieve")
package telemetry
