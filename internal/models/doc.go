// Package models defines the value types shared by every component of plsync.
//
// Catalog types, produced by connectors:
//   - [Track] : one song on one service; [Track.Signature] is the cross-service equality key
//   - [Playlist] : playlist metadata, TrackCount is informational only
//   - [ServiceType] : closed enumeration of supported services
//
// Sync types, owned by the engine:
//   - [SyncGroup] : a primary playlist and its mirrors, keyed by [ServiceType]
//   - [SyncRun] : recorded outcome of one group reconciliation
//
// [StateStore] is the durable key-value contract the engine and connectors persist through.
//
// Track identifiers never align across services, so two tracks are treated as the same song
// when their signatures (case-folded title, artists and album) are equal. ISRC is carried
// for display and export but does not take part in the comparison.
package models
