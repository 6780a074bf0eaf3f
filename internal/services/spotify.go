// Spotify Web API implementation of [Connector]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyTokenKey = "spotify_token"

	// PUT replaces at most this many items; the remainder are appended.
	spotifyBatchSize = 100
)

var spotifyScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-private",
	"playlist-modify-public",
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []spotifyArtist `json:"artists"`
	Album       spotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

func (t spotifyTrack) model() models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{
		ID:         t.ID,
		Title:      t.Name,
		Artists:    artists,
		Album:      t.Album.Name,
		ISRC:       t.ExternalIDs.ISRC,
		DurationMS: t.DurationMS,
	}
}

type spotifyPlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPage[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
	Total int     `json:"total"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

// SpotifyConnector implements [OAuthConnector] for the Spotify Web API.
//
// Tokens are persisted under spotify_token and refreshed through [oauth2.Config.TokenSource].
type SpotifyConnector struct {
	cfg     shared.SpotifyConfig
	baseURL string
	client  *apiClient
	tokens  *oauthTokens
}

// NewSpotifyConnector creates a connector with the given client credentials.
func NewSpotifyConnector(cfg shared.SpotifyConfig, store models.StateStore, opts ClientOptions) *SpotifyConnector {
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://127.0.0.1:8080/auth/spotify/callback"
	}

	endpoint := endpoints.Spotify
	if opts.AuthURL != "" {
		endpoint.AuthURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint:     endpoint,
	}

	client := newAPIClient(models.Spotify, opts)
	return &SpotifyConnector{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(opts.baseURL(spotifyBaseURL), "/"),
		client:  client,
		tokens:  newOAuthTokens(models.Spotify, store, spotifyTokenKey, config, opts.HTTPClient),
	}
}

func (s *SpotifyConnector) Service() models.ServiceType { return models.Spotify }

func (s *SpotifyConnector) IsConfigured() bool {
	return s.cfg.ClientID != "" && s.cfg.ClientSecret != ""
}

func (s *SpotifyConnector) TokenReady(ctx context.Context) bool {
	return s.tokens.ready(ctx)
}

// AuthURL returns the Spotify consent URL.
func (s *SpotifyConnector) AuthURL(ctx context.Context) (string, error) {
	if !s.IsConfigured() {
		return "", fmt.Errorf("%w: spotify client credentials", shared.ErrNotConfigured)
	}
	return s.tokens.authURL(ctx)
}

// CompleteAuth exchanges the callback code for a token.
func (s *SpotifyConnector) CompleteAuth(ctx context.Context, query url.Values) error {
	if !s.IsConfigured() {
		return fmt.Errorf("%w: spotify client credentials", shared.ErrNotConfigured)
	}
	return s.tokens.complete(ctx, query)
}

// doRequest performs an authenticated request; endpoint is either a path below the base URL or an absolute URL.
func (s *SpotifyConnector) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	token, err := s.tokens.accessToken(ctx)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(endpoint, "http") {
		endpoint = s.baseURL + endpoint
	}
	return s.client.do(ctx, method, endpoint, bearer(token), body, result)
}

// ListPlaylists follows next links until every page of the user's playlists is read.
func (s *SpotifyConnector) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	playlists := []models.Playlist{}
	next := "/me/playlists?limit=50"

	for next != "" {
		var page spotifyPage[spotifyPlaylist]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}

		for _, p := range page.Items {
			playlists = append(playlists, models.Playlist{
				ID:         p.ID,
				Name:       p.Name,
				Service:    models.Spotify,
				TrackCount: p.Tracks.Total,
			})
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return playlists, nil
}

// ListTracks returns playlist tracks, skipping episodes and unavailable items.
func (s *SpotifyConnector) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	tracks := []models.Track{}
	next := fmt.Sprintf("/playlists/%s/tracks?limit=100&additional_types=track", url.PathEscape(playlistID))

	for next != "" {
		var page spotifyPage[spotifyPlaylistItem]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, item.Track.model())
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return tracks, nil
}

// EnsurePlaylist returns an existing playlist named name or creates a private one.
func (s *SpotifyConnector) EnsurePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	playlists, err := s.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		if p.Name == name {
			return &p, nil
		}
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &me); err != nil {
		return nil, err
	}

	body := map[string]any{"name": name, "public": false, "description": "Synced by plsync."}
	var created spotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(me.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &models.Playlist{ID: created.ID, Name: created.Name, Service: models.Spotify}, nil
}

// ReplaceTracks overwrites the playlist with the first batch of URIs and appends the rest in order.
func (s *SpotifyConnector) ReplaceTracks(ctx context.Context, playlistID string, tracks []models.Track) error {
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != "" {
			uris = append(uris, "spotify:track:"+t.ID)
		}
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	batches := chunk(uris, spotifyBatchSize)
	if len(batches) == 0 {
		batches = [][]string{{}}
	}

	if err := s.doRequest(ctx, http.MethodPut, endpoint, map[string]any{"uris": batches[0]}, nil); err != nil {
		return err
	}
	for _, batch := range batches[1:] {
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": batch}, nil); err != nil {
			return err
		}
	}
	return nil
}

// SearchTrack queries the catalog with title, artists and album and prefers an exact signature match.
func (s *SpotifyConnector) SearchTrack(ctx context.Context, track models.Track) (*models.Track, error) {
	params := url.Values{}
	params.Set("q", searchTerm(track, true))
	params.Set("type", "track")
	params.Set("limit", "5")

	var response struct {
		Tracks spotifyPage[spotifyTrack] `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		candidates = append(candidates, item.model())
	}
	return pickMatch(track, candidates), nil
}
