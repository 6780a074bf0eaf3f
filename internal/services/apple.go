// Apple Music API implementation of [Connector]
//
// Requests carry a developer token (JWT) and a music user token obtained through MusicKit.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const (
	appleBaseURL   = "https://api.music.apple.com/v1"
	appleTokensKey = "apple_music_tokens"
	appleBatchSize = 100
)

// AppleTokens is the persisted Apple Music credential pair.
type AppleTokens struct {
	DeveloperToken string `json:"developer_token"`
	MusicUserToken string `json:"music_user_token"`
}

type appleResource struct {
	ID         string `json:"id"`
	Type       string `json:"type,omitempty"`
	Attributes struct {
		Name             string `json:"name"`
		ArtistName       string `json:"artistName"`
		AlbumName        string `json:"albumName"`
		ISRC             string `json:"isrc"`
		DurationInMillis int    `json:"durationInMillis"`
		TrackCount       int    `json:"trackCount"`
		PlayParams       struct {
			CatalogID string `json:"catalogId"`
		} `json:"playParams"`
	} `json:"attributes"`
}

func (r appleResource) track() models.Track {
	id := r.ID
	if id == "" {
		id = r.Attributes.PlayParams.CatalogID
	}
	artists := []string{}
	if r.Attributes.ArtistName != "" {
		artists = append(artists, r.Attributes.ArtistName)
	}
	return models.Track{
		ID:         id,
		Title:      r.Attributes.Name,
		Artists:    artists,
		Album:      r.Attributes.AlbumName,
		ISRC:       r.Attributes.ISRC,
		DurationMS: r.Attributes.DurationInMillis,
	}
}

type applePage struct {
	Data []appleResource `json:"data"`
	Next string          `json:"next"`
}

type appleRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AppleMusicConnector implements [Connector] for the Apple Music API.
type AppleMusicConnector struct {
	baseURL        string
	storefront     string
	developerToken string
	store          models.StateStore
	client         *apiClient
}

// NewAppleMusicConnector creates a connector using the configured developer token and storefront.
func NewAppleMusicConnector(cfg shared.AppleConfig, store models.StateStore, opts ClientOptions) *AppleMusicConnector {
	storefront := cfg.Storefront
	if storefront == "" {
		storefront = "us"
	}
	return &AppleMusicConnector{
		baseURL:        strings.TrimSuffix(opts.baseURL(appleBaseURL), "/"),
		storefront:     storefront,
		developerToken: cfg.DeveloperToken,
		store:          store,
		client:         newAPIClient(models.AppleMusic, opts),
	}
}

func (a *AppleMusicConnector) Service() models.ServiceType { return models.AppleMusic }

func (a *AppleMusicConnector) IsConfigured() bool { return a.developerToken != "" }

func (a *AppleMusicConnector) TokenReady(ctx context.Context) bool {
	_, err := a.tokens(ctx)
	return err == nil
}

// SetDeveloperToken stores a developer token, keeping any existing music user token.
func (a *AppleMusicConnector) SetDeveloperToken(ctx context.Context, developerToken string) error {
	if developerToken == "" {
		return fmt.Errorf("%w: developer token is empty", shared.ErrInvalidInput)
	}

	var existing AppleTokens
	if _, err := a.store.Get(ctx, appleTokensKey, &existing); err != nil {
		return err
	}
	existing.DeveloperToken = developerToken
	if err := a.store.Set(ctx, appleTokensKey, existing); err != nil {
		return err
	}
	a.developerToken = developerToken
	return nil
}

// SetTokens stores the music user token, with an optional developer token override.
func (a *AppleMusicConnector) SetTokens(ctx context.Context, developerToken, musicUserToken string) error {
	if developerToken == "" {
		developerToken = a.developerToken
	}
	if developerToken == "" || musicUserToken == "" {
		return fmt.Errorf("%w: apple music requires developer and music user tokens", shared.ErrInvalidInput)
	}

	if err := a.store.Set(ctx, appleTokensKey, AppleTokens{developerToken, musicUserToken}); err != nil {
		return err
	}
	a.developerToken = developerToken
	return nil
}

func (a *AppleMusicConnector) tokens(ctx context.Context) (AppleTokens, error) {
	var tokens AppleTokens
	ok, err := a.store.Get(ctx, appleTokensKey, &tokens)
	if err != nil {
		return tokens, err
	}
	if tokens.DeveloperToken == "" {
		tokens.DeveloperToken = a.developerToken
	}
	if !ok || tokens.DeveloperToken == "" || tokens.MusicUserToken == "" {
		return tokens, fmt.Errorf("%w: apple music tokens are missing", shared.ErrNotAuthenticated)
	}
	return tokens, nil
}

func (a *AppleMusicConnector) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	tokens, err := a.tokens(ctx)
	if err != nil {
		return err
	}

	header := bearer(tokens.DeveloperToken)
	header.Set("Music-User-Token", tokens.MusicUserToken)
	return a.client.do(ctx, method, a.baseURL+endpoint, header, body, result)
}

// paginate reads every page starting at endpoint; next links are relative to the API root.
func (a *AppleMusicConnector) paginate(ctx context.Context, endpoint string) ([]appleResource, error) {
	var resources []appleResource
	for endpoint != "" {
		var page applePage
		if err := a.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		resources = append(resources, page.Data...)
		endpoint = strings.TrimPrefix(page.Next, "/v1")
	}
	return resources, nil
}

// ListPlaylists returns the user's library playlists.
func (a *AppleMusicConnector) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	resources, err := a.paginate(ctx, "/me/library/playlists")
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(resources))
	for _, r := range resources {
		name := r.Attributes.Name
		if name == "" {
			name = "Untitled"
		}
		playlists = append(playlists, models.Playlist{
			ID:         r.ID,
			Name:       name,
			Service:    models.AppleMusic,
			TrackCount: r.Attributes.TrackCount,
		})
	}
	return playlists, nil
}

// ListTracks returns the library playlist's songs in order.
func (a *AppleMusicConnector) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	resources, err := a.paginate(ctx, "/me/library/playlists/"+url.PathEscape(playlistID)+"/tracks")
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resources))
	for _, r := range resources {
		tracks = append(tracks, r.track())
	}
	return tracks, nil
}

// EnsurePlaylist returns an existing library playlist named name or creates one.
func (a *AppleMusicConnector) EnsurePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	playlists, err := a.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		if p.Name == name {
			return &p, nil
		}
	}

	body := map[string]any{
		"attributes": map[string]string{"name": name, "description": "Synced by plsync."},
	}
	var created applePage
	if err := a.doRequest(ctx, http.MethodPost, "/me/library/playlists", body, &created); err != nil {
		return nil, err
	}
	if len(created.Data) == 0 {
		return nil, fmt.Errorf("%w: apple music returned no playlist", shared.ErrAPIRequest)
	}

	playlist := &models.Playlist{ID: created.Data[0].ID, Name: created.Data[0].Attributes.Name, Service: models.AppleMusic}
	if playlist.Name == "" {
		playlist.Name = name
	}
	return playlist, nil
}

// ReplaceTracks removes the current songs and then adds tracks in batches.
//
// The library API rejects track removal for some playlists; such failures are logged and the add still runs.
func (a *AppleMusicConnector) ReplaceTracks(ctx context.Context, playlistID string, tracks []models.Track) error {
	endpoint := "/me/library/playlists/" + url.PathEscape(playlistID) + "/tracks"

	existing, err := a.ListTracks(ctx, playlistID)
	if err != nil && !errors.Is(err, shared.ErrPlaylistNotFound) {
		return err
	}

	if len(existing) > 0 {
		refs := make([]appleRef, 0, len(existing))
		for _, t := range existing {
			if t.ID != "" {
				refs = append(refs, appleRef{ID: t.ID, Type: "library-songs"})
			}
		}
		if err := a.doRequest(ctx, http.MethodDelete, endpoint, map[string]any{"data": refs}, nil); err != nil {
			if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrTransient) {
				return err
			}
			a.client.logger.Warn("could not clear playlist", "playlist", playlistID, "err", err)
		}
	}

	refs := make([]appleRef, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		kind := "songs"
		if strings.HasPrefix(t.ID, "i.") {
			kind = "library-songs"
		}
		refs = append(refs, appleRef{ID: t.ID, Type: kind})
	}

	for _, batch := range chunk(refs, appleBatchSize) {
		if err := a.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"data": batch}, nil); err != nil {
			return err
		}
	}
	return nil
}

// SearchTrack searches the storefront catalog for songs.
func (a *AppleMusicConnector) SearchTrack(ctx context.Context, track models.Track) (*models.Track, error) {
	params := url.Values{}
	params.Set("term", searchTerm(track, true))
	params.Set("types", "songs")
	params.Set("limit", "5")

	var response struct {
		Results struct {
			Songs applePage `json:"songs"`
		} `json:"results"`
	}
	endpoint := "/catalog/" + a.storefront + "/search?" + params.Encode()
	if err := a.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.Track, 0, len(response.Results.Songs.Data))
	for _, r := range response.Results.Songs.Data {
		candidates = append(candidates, r.track())
	}
	return pickMatch(track, candidates), nil
}
