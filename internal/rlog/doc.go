// Package rlog provides structured logging for rodengine using zerolog.
//
// It wraps zerolog to give every component (internal/txn, internal/
// snapshot, internal/recovery, internal/handlers) a component-scoped
// logger with JSON output by default, mirroring the logging package of
// the teacher corpus (cuemby-warren's pkg/log) adapted to rodengine's own
// component names.
//
// # Usage
//
//	rlog.Init(rlog.Config{Level: rlog.InfoLevel})
//	log := rlog.WithComponent("txn")
//	log.Info().Int("table_count", 3).Msg("transaction committed")
package rlog
