// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// Alpml rendering.
//
// Metrics implements component.Observer and page.Observer, so a single value
// can be handed to both:
//
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	engine := alpml.New(alpml.WithMetrics(m))
//
// Metrics collected:
//   - alpml_components_defined_total: components defined, by component
//   - alpml_renders_total: display node renders, by component and kind (append, replace)
//   - alpml_render_duration_seconds: render duration, by component
//   - alpml_insertion_failures_total: failed child insertions, by component and code
//   - alpml_declarations_total: fetched declarations, by scheme and status
//   - alpml_fetch_duration_seconds: declaration fetch duration, by scheme
//   - alpml_pages_rendered_total: rendered pages, by status
//   - alpml_reloads_total: live reload broadcasts
//
// Spans use the global tracer provider; configure it with otel.SetTracerProvider.
package telemetry
