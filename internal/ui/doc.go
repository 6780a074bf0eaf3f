// Package ui implements a terminal dashboard for sync groups using bubbletea's Elm architecture.
//
// The dashboard has two views:
//  1. [GroupListView] : connector readiness, every group with its last outcome, and live sweep activity
//  2. [GroupDetailView] : one group's primary and mirror playlists with per-mirror results
//
// Pressing s runs a sweep through [tasks.SyncManager.RunOnce]. Progress updates arrive on the channel the
// manager was built with, so sweeps started by the scheduler show up as well.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, r, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
