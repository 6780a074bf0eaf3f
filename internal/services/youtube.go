// YouTube Data API v3 implementation of [Connector]
//
// YouTube Music shares playlists with YouTube, so the public Data API is used for reads and writes.
// Artists are taken from the uploading channel, which for YouTube Music releases is the "<artist> - Topic" channel.
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
	youtubeBaseURL  = "https://www.googleapis.com/youtube/v3"
	youtubeTokenKey = "youtube_token"
	youtubeScope    = "https://www.googleapis.com/auth/youtube"

	// Music category, used to bias search toward songs.
	youtubeMusicCategory = "10"
)

type youtubeSnippet struct {
	Title                  string `json:"title"`
	ChannelTitle           string `json:"channelTitle"`
	VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
	ResourceID             struct {
		VideoID string `json:"videoId"`
	} `json:"resourceId"`
}

type youtubePlaylist struct {
	ID             string         `json:"id"`
	Snippet        youtubeSnippet `json:"snippet"`
	ContentDetails struct {
		ItemCount int `json:"itemCount"`
	} `json:"contentDetails"`
}

type youtubePlaylistItem struct {
	ID      string         `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

type youtubeSearchResult struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

type youtubePage[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// channelArtist strips the auto-generated " - Topic" suffix from a channel name.
func channelArtist(channel string) []string {
	channel = strings.TrimSpace(strings.TrimSuffix(channel, " - Topic"))
	if channel == "" {
		return []string{}
	}
	return []string{channel}
}

// YouTubeConnector implements [OAuthConnector] for YouTube Music through the YouTube Data API.
type YouTubeConnector struct {
	cfg     shared.YouTubeConfig
	baseURL string
	client  *apiClient
	tokens  *oauthTokens
}

// NewYouTubeConnector creates a connector using Google OAuth client credentials.
func NewYouTubeConnector(cfg shared.YouTubeConfig, store models.StateStore, opts ClientOptions) *YouTubeConnector {
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://127.0.0.1:8080/auth/youtube_music/callback"
	}

	endpoint := endpoints.Google
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
		Scopes:       []string{youtubeScope},
		Endpoint:     endpoint,
	}

	return &YouTubeConnector{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(opts.baseURL(youtubeBaseURL), "/"),
		client:  newAPIClient(models.YouTubeMusic, opts),
		tokens:  newOAuthTokens(models.YouTubeMusic, store, youtubeTokenKey, config, opts.HTTPClient),
	}
}

func (y *YouTubeConnector) Service() models.ServiceType { return models.YouTubeMusic }

func (y *YouTubeConnector) IsConfigured() bool {
	return y.cfg.ClientID != "" && y.cfg.ClientSecret != ""
}

func (y *YouTubeConnector) TokenReady(ctx context.Context) bool {
	return y.tokens.ready(ctx)
}

// AuthURL returns the Google consent URL, forcing the consent prompt so a refresh token is issued.
func (y *YouTubeConnector) AuthURL(ctx context.Context) (string, error) {
	if !y.IsConfigured() {
		return "", fmt.Errorf("%w: youtube client credentials", shared.ErrNotConfigured)
	}
	return y.tokens.authURL(ctx,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// CompleteAuth exchanges the callback code for a token.
func (y *YouTubeConnector) CompleteAuth(ctx context.Context, query url.Values) error {
	if !y.IsConfigured() {
		return fmt.Errorf("%w: youtube client credentials", shared.ErrNotConfigured)
	}
	return y.tokens.complete(ctx, query)
}

func (y *YouTubeConnector) doRequest(ctx context.Context, method, resource string, params url.Values, body, result any) error {
	token, err := y.tokens.accessToken(ctx)
	if err != nil {
		return err
	}

	endpoint := y.baseURL + "/" + resource
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return y.client.do(ctx, method, endpoint, bearer(token), body, result)
}

// paginate follows nextPageToken for resource, calling fn for each page.
func paginate[T any](ctx context.Context, y *YouTubeConnector, resource string, params url.Values, fn func([]T)) error {
	for {
		var page youtubePage[T]
		if err := y.doRequest(ctx, http.MethodGet, resource, params, nil, &page); err != nil {
			return err
		}
		fn(page.Items)

		if page.NextPageToken == "" {
			return nil
		}
		params.Set("pageToken", page.NextPageToken)
	}
}

// ListPlaylists returns every playlist owned by the authenticated channel.
func (y *YouTubeConnector) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	params := url.Values{}
	params.Set("mine", "true")
	params.Set("part", "id,snippet,contentDetails")
	params.Set("maxResults", "50")

	playlists := []models.Playlist{}
	err := paginate(ctx, y, "playlists", params, func(items []youtubePlaylist) {
		for _, p := range items {
			name := p.Snippet.Title
			if name == "" {
				name = "Untitled"
			}
			playlists = append(playlists, models.Playlist{
				ID:         p.ID,
				Name:       name,
				Service:    models.YouTubeMusic,
				TrackCount: p.ContentDetails.ItemCount,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

func (y *YouTubeConnector) playlistItems(ctx context.Context, playlistID, part string) ([]youtubePlaylistItem, error) {
	params := url.Values{}
	params.Set("playlistId", playlistID)
	params.Set("part", part)
	params.Set("maxResults", "50")

	var all []youtubePlaylistItem
	err := paginate(ctx, y, "playlistItems", params, func(items []youtubePlaylistItem) {
		all = append(all, items...)
	})
	return all, err
}

// ListTracks returns the videos in the playlist in position order.
func (y *YouTubeConnector) ListTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	items, err := y.playlistItems(ctx, playlistID, "snippet,contentDetails")
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, models.Track{
			ID:      item.Snippet.ResourceID.VideoID,
			Title:   item.Snippet.Title,
			Artists: channelArtist(item.Snippet.VideoOwnerChannelTitle),
		})
	}
	return tracks, nil
}

// EnsurePlaylist returns an existing playlist named name or creates a private one.
func (y *YouTubeConnector) EnsurePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	playlists, err := y.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		if p.Name == name {
			return &p, nil
		}
	}

	body := map[string]any{
		"snippet": map[string]string{"title": name, "description": "Synced by plsync."},
		"status":  map[string]string{"privacyStatus": "private"},
	}
	var created youtubePlaylist
	if err := y.doRequest(ctx, http.MethodPost, "playlists", url.Values{"part": {"snippet,status"}}, body, &created); err != nil {
		return nil, err
	}

	playlist := &models.Playlist{ID: created.ID, Name: created.Snippet.Title, Service: models.YouTubeMusic}
	if playlist.Name == "" {
		playlist.Name = name
	}
	return playlist, nil
}

// ReplaceTracks deletes every playlist item and then inserts tracks one by one in order.
func (y *YouTubeConnector) ReplaceTracks(ctx context.Context, playlistID string, tracks []models.Track) error {
	existing, err := y.playlistItems(ctx, playlistID, "id")
	if err != nil {
		return err
	}

	for _, item := range existing {
		if err := y.doRequest(ctx, http.MethodDelete, "playlistItems", url.Values{"id": {item.ID}}, nil, nil); err != nil {
			return err
		}
	}

	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		body := map[string]any{
			"snippet": map[string]any{
				"playlistId": playlistID,
				"resourceId": map[string]string{"kind": "youtube#video", "videoId": t.ID},
			},
		}
		if err := y.doRequest(ctx, http.MethodPost, "playlistItems", url.Values{"part": {"snippet"}}, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// SearchTrack searches music videos by title and artists.
func (y *YouTubeConnector) SearchTrack(ctx context.Context, track models.Track) (*models.Track, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", searchTerm(track, false))
	params.Set("maxResults", "5")
	params.Set("videoCategoryId", youtubeMusicCategory)

	var page youtubePage[youtubeSearchResult]
	if err := y.doRequest(ctx, http.MethodGet, "search", params, nil, &page); err != nil {
		return nil, err
	}

	candidates := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID.VideoID == "" {
			continue
		}
		candidates = append(candidates, models.Track{
			ID:      item.ID.VideoID,
			Title:   item.Snippet.Title,
			Artists: channelArtist(item.Snippet.ChannelTitle),
		})
	}
	return pickMatch(track, candidates), nil
}
