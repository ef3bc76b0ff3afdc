// Package memory holds the typed conversation log and its persistence.
//
// The log is the sole state of an exchange with the completion service.
// Ordering is significant: the service requires reasoning traces and tool
// calls to appear before the items that depend on them, so the log is
// append-only within a turn cycle.
//
// Invariants:
//   - every tool call is followed by exactly one result with its call_id
//     before the next request is issued;
//   - a result never appears without a preceding call of the same call_id.
//
// Persistence model:
//   - The full typed transcript (all item kinds) is stored as JSON.
//   - Saving is best effort and owned by the caller; nothing here retries.
package memory
