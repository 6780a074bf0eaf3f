// Package repositories implements SQLite persistence for the sync engine.
//
// Key Implementations:
//   - [StateRepository] : durable JSON key-value store backing tokens, sync groups and snapshots
//   - [SyncRunRepository] : append-only history of group reconciliations
//
// Sequence numbers provide stable, human-readable ordering for sync runs.
// The [NextSequence] function atomically increments per-table counters in dedicated sequence tables.
package repositories
