// package models defines the data model shared by the sync engine, connectors and persistence layer
package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
)

// ServiceType identifies a supported music streaming service.
//
// The string value is stable and used as a map key, JSON tag, and storage key prefix.
type ServiceType string

const (
	Spotify      ServiceType = "spotify"
	AppleMusic   ServiceType = "apple_music"
	YouTubeMusic ServiceType = "youtube_music"
)

// ServiceTypes lists every supported service in display order.
var ServiceTypes = []ServiceType{Spotify, AppleMusic, YouTubeMusic}

// ParseServiceType converts a tag into a [ServiceType], rejecting unknown services.
func ParseServiceType(s string) (ServiceType, error) {
	st := ServiceType(strings.TrimSpace(strings.ToLower(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidService, s)
	}
	return st, nil
}

// Valid reports whether s is one of [ServiceTypes].
func (s ServiceType) Valid() bool {
	switch s {
	case Spotify, AppleMusic, YouTubeMusic:
		return true
	default:
		return false
	}
}

func (s ServiceType) String() string { return string(s) }

// DisplayName returns a human readable service name.
func (s ServiceType) DisplayName() string {
	switch s {
	case Spotify:
		return "Spotify"
	case AppleMusic:
		return "Apple Music"
	case YouTubeMusic:
		return "YouTube Music"
	default:
		return string(s)
	}
}

// Track represents a song as returned by one service's catalog.
//
// ID is only meaningful on the owning service.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	ISRC       string   `json:"isrc,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
}

// Signature returns the normalized signature used as the cross-service equality surrogate.
//
// It depends on title, artists and album only.
func (t Track) Signature() string {
	artists := strings.ToLower(strings.Join(t.Artists, " "))
	return strings.ToLower(t.Title) + "|" + artists + "|" + strings.ToLower(t.Album)
}

// SameSong reports whether two tracks, possibly from different services, share a signature.
func SameSong(a, b Track) bool {
	return a.Signature() == b.Signature()
}

// Artist returns the artists joined for display.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// Playlist represents playlist metadata from a service.
type Playlist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Service    ServiceType `json:"service"`
	TrackCount int         `json:"track_count"` // informational only
}

// SyncGroup binds one primary playlist to zero or more mirror playlists on other services.
type SyncGroup struct {
	ID             string                 `json:"id" yaml:"id"`
	Name           string                 `json:"name" yaml:"name"`
	PrimaryService ServiceType            `json:"primary_service" yaml:"primary_service"`
	Playlists      map[ServiceType]string `json:"playlists" yaml:"playlists"`
}

// SourcePlaylist returns the playlist ID registered under the primary service, if any.
func (g SyncGroup) SourcePlaylist() (string, bool) {
	id, ok := g.Playlists[g.PrimaryService]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Target is a mirror playlist on a non-primary service.
type Target struct {
	Service    ServiceType
	PlaylistID string
}

// Targets returns the group's mirror playlists sorted by service tag.
func (g SyncGroup) Targets() []Target {
	targets := make([]Target, 0, len(g.Playlists))
	for service, playlistID := range g.Playlists {
		if service == g.PrimaryService {
			continue
		}
		targets = append(targets, Target{Service: service, PlaylistID: playlistID})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Service < targets[j].Service })
	return targets
}

// Clone returns a copy of the group with its own playlist map.
func (g SyncGroup) Clone() SyncGroup {
	playlists := make(map[ServiceType]string, len(g.Playlists))
	for k, v := range g.Playlists {
		playlists[k] = v
	}
	g.Playlists = playlists
	return g
}

// RunStatus is the outcome of reconciling one group.
type RunStatus string

const (
	RunSkipped   RunStatus = "skipped"
	RunUnchanged RunStatus = "unchanged"
	RunSynced    RunStatus = "synced"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// SyncRun is a persisted record of one group reconciliation.
type SyncRun struct {
	ID            string    `json:"id" yaml:"id"`
	Sequence      int       `json:"sequence" yaml:"sequence"`
	GroupID       string    `json:"group_id" yaml:"group_id"`
	Status        RunStatus `json:"status" yaml:"status"`
	Digest        string    `json:"digest,omitempty" yaml:"digest,omitempty"`
	Targets       int       `json:"targets" yaml:"targets"`
	FailedTargets int       `json:"failed_targets" yaml:"failed_targets"`
	Message       string    `json:"message,omitempty" yaml:"message,omitempty"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time `json:"finished_at" yaml:"finished_at"`
}

// Validate checks the run carries enough data to be stored.
func (r *SyncRun) Validate() error {
	if r.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	switch r.Status {
	case RunSkipped, RunUnchanged, RunSynced, RunPartial, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return fmt.Errorf("finished_at precedes started_at")
	}
	return nil
}

// StateStore is a durable key-value store.
//
// Values are any JSON-serializable structure. Get reports whether the key was present;
// when it is absent dest is left untouched so callers can pre-fill a default.
type StateStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}
