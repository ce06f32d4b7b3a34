// Package prometheus renders warden engine metrics in Prometheus text
// exposition format.
//
// Counters are named warden_*_total. Login and token authentication latency
// are exported as warden_login_latency_seconds and
// warden_verify_latency_seconds when the engine records histograms.
//
// # What this package must NOT do
//
//   - Register anything in a global registry. Callers mount Handler.
//   - Mutate engine state.
package prometheus
