// Package storage persists the set of known entry ids and the operator
// audit log.
//
// Drivers:
//   - "file": JSON array of ids (human-readable, the default) plus a JSONL audit log
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
//   - "bolt": bbolt key/value file
//
// Stores return explicit errors; the tracker decides how to degrade.
package storage
