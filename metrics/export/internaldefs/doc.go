// Package internaldefs holds the metric families, session gauges and bucket
// boundaries shared by the Prometheus and OTel exporters, so both publish
// identical series.
//
// Counters are grouped into families keyed by one label (result, op or
// outcome), so a dashboard can sum a family without knowing every series.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
