// package services defines the [Connector] contract the sync engine consumes and implements it
// for Spotify, Apple Music and YouTube Music.
package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Connector is the capability the sync engine uses to read and write playlists on one service.
//
// Every call is independent; there is no transaction across calls.
type Connector interface {
	// Service returns the service tag this connector serves.
	Service() models.ServiceType

	// IsConfigured reports whether client credentials are present. It performs no I/O.
	IsConfigured() bool

	// TokenReady reports whether stored credentials are usable. It never refreshes.
	TokenReady(ctx context.Context) bool

	// ListPlaylists returns every playlist of the authenticated user or fails; it never returns a partial list.
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)

	// ListTracks returns the playlist's tracks in catalog order.
	ListTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// EnsurePlaylist returns the first playlist whose name matches exactly, creating one when absent.
	EnsurePlaylist(ctx context.Context, name string) (*models.Playlist, error)

	// ReplaceTracks makes the playlist contain exactly tracks, in order. An empty slice clears it.
	ReplaceTracks(ctx context.Context, playlistID string, tracks []models.Track) error

	// SearchTrack finds the equivalent of a track from another service.
	//
	// A nil track with a nil error means no match.
	SearchTrack(ctx context.Context, track models.Track) (*models.Track, error)
}

// OAuthConnector extends [Connector] for services authorised through a browser redirect.
type OAuthConnector interface {
	Connector

	// AuthURL returns the consent URL the user should visit.
	AuthURL(ctx context.Context) (string, error)

	// CompleteAuth handles the redirect query and persists the resulting token.
	CompleteAuth(ctx context.Context, query url.Values) error
}

// Connectors indexes connectors by service.
type Connectors map[models.ServiceType]Connector

// Get returns the connector for service or [shared.ErrConnectorMissing].
func (c Connectors) Get(service models.ServiceType) (Connector, error) {
	conn, ok := c[service]
	if !ok || conn == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrConnectorMissing, service)
	}
	return conn, nil
}

// ConnectorStatus summarises one connector for status output.
type ConnectorStatus struct {
	Service    models.ServiceType `json:"service"`
	Name       string             `json:"name"`
	Configured bool               `json:"configured"`
	Ready      bool               `json:"ready"`
}

// Statuses reports every known service in display order, including those without a connector.
func (c Connectors) Statuses(ctx context.Context) []ConnectorStatus {
	statuses := make([]ConnectorStatus, 0, len(models.ServiceTypes))
	for _, service := range models.ServiceTypes {
		status := ConnectorStatus{Service: service, Name: service.DisplayName()}
		if conn, ok := c[service]; ok && conn != nil {
			status.Configured = conn.IsConfigured()
			status.Ready = status.Configured && conn.TokenReady(ctx)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// NewConnectors builds the three service connectors from config, all persisting tokens in store.
func NewConnectors(cfg *shared.Config, store models.StateStore, logger *log.Logger) Connectors {
	opts := ClientOptions{
		Timeout:           cfg.Sync.RequestTimeout(),
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		Logger:            logger,
	}

	return Connectors{
		models.Spotify:      NewSpotifyConnector(cfg.Credentials.Spotify, store, opts),
		models.AppleMusic:   NewAppleMusicConnector(cfg.Credentials.Apple, store, opts),
		models.YouTubeMusic: NewYouTubeConnector(cfg.Credentials.YouTube, store, opts),
	}
}

// pickMatch returns the first candidate whose signature equals the query's, otherwise the first candidate.
//
// The fallback is a lower-confidence match.
func pickMatch(query models.Track, candidates []models.Track) *models.Track {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		if models.SameSong(candidates[i], query) {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

// searchTerm joins title, artists and (optionally) album into a free-text query.
func searchTerm(track models.Track, withAlbum bool) string {
	term := track.Title
	for _, a := range track.Artists {
		term += " " + a
	}
	if withAlbum && track.Album != "" {
		term += " " + track.Album
	}
	return term
}
