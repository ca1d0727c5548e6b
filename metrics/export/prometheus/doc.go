// Package prometheus renders goSession metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads a [goSession.MetricsSource] (both
// authenticators implement it) and exposes an [http.Handler]. Counters are
// rendered as labeled families such as
// gosession_token_acquisition_total{outcome="silent_success"}; the single
// histogram is gosession_token_acquire_latency_seconds. Authenticators also
// get per-mode session gauges.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate session state.
package prometheus
