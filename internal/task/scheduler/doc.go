// Package scheduler runs the catalog check on a fixed schedule.
//
// The schedule is parsed by ParseSchedule (Go duration, HH:MM interval or a
// cron expression) and driven by robfig/cron. Start is idempotent so it can
// be bound to a readiness signal that may fire more than once. Overlapping
// ticks are skipped, and a failing or panicking run is logged without
// stopping later ticks.
package scheduler
