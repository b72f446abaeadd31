// Package tracker owns the set of known catalog ids and turns a fetched
// snapshot into the list of entries that were not seen before.
//
// The known set is replaced by each successful non-empty snapshot (ids that
// disappear upstream are dropped silently) and persisted through
// storage.Store. Persistence failures never fail a cycle: the in-memory set
// stays authoritative for the lifetime of the process.
package tracker
