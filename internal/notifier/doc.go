// Package notifier renders new catalog entries as cards and delivers them to
// a chat, one at a time with a fixed delay between sends.
//
// # Delivery
//
// A batch never aborts on the first failure: each entry gets its own
// outcome in the returned Report, and later entries are still attempted.
// Cancelling the context stops the batch; entries not yet attempted are
// reported as failed with the context error.
//
// # History
//
// For operator visibility the service keeps a small in-memory history of
// recent deliveries, shown by /status.
package notifier
