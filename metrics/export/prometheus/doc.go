// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [rapidauth.Engine] and exposes an
// [http.Handler] that renders all counters and histograms. Counter names are
// prefixed rapidauth_*_total; the single histogram is
// rapidauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
