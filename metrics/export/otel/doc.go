// Package otel publishes goSession counters, session gauges and the token
// latency histogram as OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family,
// with the family label (result, op or outcome) as an attribute, and one
// bucket gauge keyed by the le attribute for the histogram. When the source
// is an authenticator, 0/1 gauges for authenticated, loading and
// account_present are published with a mode attribute. A single callback
// reads [goSession.MetricsSource.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate session state.
package otel
