// Package instrumentation provides OpenTelemetry metrics and tracing for the
// token service.
//
// Instrumentation is optional: when disabled, no-op providers are used and
// recording has zero overhead. Components receive an *Instrumentation via
// their SetInstrumentation methods and create scoped meters and tracers from
// it. Scopes mirror the layers of the library: "http", "server", "storage",
// "ledger", and "security".
package instrumentation
