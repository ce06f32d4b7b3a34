// Package otel exports warden engine metrics through an OpenTelemetry meter.
//
// [New] registers an Int64ObservableCounter per engine counter and, per
// latency histogram, a cumulative bucket gauge carrying an "le" attribute
// plus a count gauge. One callback reads the engine snapshot per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
