// Package tasks keeps mirror playlists in step with their primary playlist.
//
// # Sync Groups
//
// A [Registry] persists sync groups under the "sync_groups" state key. A group names one primary
// service and maps services to playlist IDs; the primary entry is the source of truth and every
// other entry is a mirror.
//
// # Reconciliation
//
// [SyncManager.SyncGroup] reconciles one group:
//
//  1. Skip when the primary connector is missing, not authenticated, or no source playlist is linked
//  2. Fetch the source tracks and compute their [Digest]
//  3. Stop when the digest equals the stored snapshot (zero target writes)
//  4. For each mirror: search every source track on the target catalog, drop misses, and replace
//     the mirror's contents wholesale. A search error fails the mirror before anything is written
//  5. Save the digest under "sync_snapshot::<group id>"
//
// Mirrors are updated through an errgroup bounded by [Options.MaxParallelTargets]. A failed mirror
// never cancels its siblings, and a panicking connector fails only its own mirror. By default the snapshot is saved even when a mirror failed, so that
// mirror is refreshed on the next source change; [Options.RetryFailedTargets] withholds the
// snapshot instead so the next sweep retries.
//
// # Scheduling
//
// [SyncManager.Start] runs sweeps on an interval until [SyncManager.Stop]. Manual sweeps through
// [SyncManager.RunOnce] share the same gate, so two sweeps never overlap.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
