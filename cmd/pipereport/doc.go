// Package main hosts the pipeline reporter demo entrypoint.
//
// Architecture overview:
//   - Job engine: internal/job runs a synthetic processor's streams through a set of destinations, batching rows and
//     retrying loads with exponential backoff. Every step is emitted as a progress.Event onto a progress.Bus.
//   - Report: internal/reporter attaches a JobReport to the bus. It counts rows, bytes and per-destination outcomes,
//     renders a snapshot of the open stream every reporter.interval_ms, and prints failure entries as they happen.
//   - Diagnostics: the LogSink mirrors events into zap at debug level; the PrometheusSink mirrors them into a private
//     registry whose totals are logged when the job ends.
//   - Configuration & plumbing: Viper populates config from env/files (prefix PIPEREPORT); zap provides structured
//     logging. SIGINT/SIGTERM cancel the running job, which then reports itself as failed.
//
// Quick checklist:
//   - Run locally: go run ./cmd/pipereport -config config.yaml (or rely solely on env overrides).
//   - Make it noisy: PIPEREPORT_DEMO_FAIL_LOADS=true PIPEREPORT_REPORTER_INTERVAL_MS=200.
package main
