// Package metrics exposes Prometheus counters and gauges for the engine's
// transaction and snapshot activity, following the package-level-variable
// style of the teacher corpus's metrics package (cuemby-warren's pkg/
// metrics). Nothing in rodengine's core registers an HTTP handler for
// these; exporting them over /metrics is a collaborator concern (the
// excluded REST surface), so this package only defines the collectors and
// leaves registration/exposition to the embedding program.
package metrics
