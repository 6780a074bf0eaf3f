package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	tu "github.com/desertthunder/plsync/internal/testing"
	"golang.org/x/oauth2"
)

func newSpotifyTest(t *testing.T, mux *http.ServeMux, token *oauth2.Token) (*SpotifyConnector, *tu.MemoryStore) {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := tu.NewMemoryStore()
	if token != nil {
		if err := store.Set(context.Background(), spotifyTokenKey, token); err != nil {
			t.Fatalf("failed to seed token: %v", err)
		}
	}

	cfg := shared.SpotifyConfig{ClientID: "client", ClientSecret: "secret"}
	conn := NewSpotifyConnector(cfg, store, ClientOptions{
		BaseURL:  server.URL,
		AuthURL:  server.URL + "/authorize",
		TokenURL: server.URL + "/token",
	})
	return conn, store
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func spotifyItem(id, name, artist, album string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"artists":      []map[string]string{{"name": artist}},
		"album":        map[string]string{"name": album},
		"duration_ms":  180000,
		"external_ids": map[string]string{"isrc": "ISRC-" + id},
	}
}

func TestSpotifyConnector(t *testing.T) {
	ctx := context.Background()

	t.Run("Configuration", func(t *testing.T) {
		conn := NewSpotifyConnector(shared.SpotifyConfig{ClientID: "id"}, tu.NewMemoryStore(), ClientOptions{})
		if conn.IsConfigured() {
			t.Error("connector without secret should not be configured")
		}
		if conn.Service() != models.Spotify {
			t.Errorf("expected spotify, got %s", conn.Service())
		}
		if conn.TokenReady(ctx) {
			t.Error("token should not be ready without stored token")
		}
		if _, err := conn.AuthURL(ctx); !errors.Is(err, shared.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("ListPlaylists Follows Next", func(t *testing.T) {
		mux := http.NewServeMux()
		var serverURL string
		mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer access" {
				t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
			}
			if r.URL.Query().Get("offset") == "" {
				next := serverURL + "/me/playlists?offset=50&limit=50"
				writeJSON(t, w, map[string]any{
					"items": []map[string]any{{"id": "p1", "name": "Road Trip", "tracks": map[string]int{"total": 3}}},
					"next":  next,
				})
				return
			}
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{{"id": "p2", "name": "Focus", "tracks": map[string]int{"total": 9}}},
				"next":  nil,
			})
		})

		conn, _ := newSpotifyTest(t, mux, validToken())
		serverURL = conn.baseURL

		playlists, err := conn.ListPlaylists(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[1].ID != "p2" || playlists[1].TrackCount != 9 || playlists[1].Service != models.Spotify {
			t.Errorf("unexpected second playlist: %+v", playlists[1])
		}
	})

	t.Run("ListTracks Skips Unavailable Items", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"track": spotifyItem("t1", "Song A", "Artist", "Album")},
					{"track": nil},
					{"track": spotifyItem("", "Local File", "Me", "")},
					{"track": spotifyItem("t2", "Song B", "Artist", "Album")},
				},
			})
		})

		conn, _ := newSpotifyTest(t, mux, validToken())
		tracks, err := conn.ListTracks(ctx, "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].ID != "t1" || tracks[1].ID != "t2" {
			t.Fatalf("unexpected tracks: %+v", tracks)
		}
		if tracks[0].ISRC != "ISRC-t1" || tracks[0].Album != "Album" || tracks[0].Artists[0] != "Artist" {
			t.Errorf("track fields not mapped: %+v", tracks[0])
		}
	})

	t.Run("ListTracks Without Token", func(t *testing.T) {
		conn, _ := newSpotifyTest(t, http.NewServeMux(), nil)
		if _, err := conn.ListTracks(ctx, "p1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Rejected Token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired", http.StatusUnauthorized)
		})

		conn, _ := newSpotifyTest(t, mux, validToken())
		if _, err := conn.ListTracks(ctx, "p1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("ReplaceTracks Batches", func(t *testing.T) {
		var calls []string
		var sizes []int
		mux := http.NewServeMux()
		mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				URIs []string `json:"uris"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad body: %v", err)
			}
			calls = append(calls, r.Method)
			sizes = append(sizes, len(body.URIs))
			if len(body.URIs) > 0 && !strings.HasPrefix(body.URIs[0], "spotify:track:") {
				t.Errorf("expected track URIs, got %s", body.URIs[0])
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"snapshot_id":"s"}`))
		})

		conn, _ := newSpotifyTest(t, mux, validToken())

		tracks := make([]models.Track, 150)
		for i := range tracks {
			tracks[i] = models.Track{ID: fmt.Sprintf("t%d", i)}
		}
		if err := conn.ReplaceTracks(ctx, "p1", tracks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Join(calls, ",") != "PUT,POST" || sizes[0] != 100 || sizes[1] != 50 {
			t.Errorf("expected PUT 100 then POST 50, got %v %v", calls, sizes)
		}

		calls, sizes = nil, nil
		if err := conn.ReplaceTracks(ctx, "p1", nil); err != nil {
			t.Fatalf("unexpected error clearing: %v", err)
		}
		if len(calls) != 1 || calls[0] != http.MethodPut || sizes[0] != 0 {
			t.Errorf("expected a single empty PUT, got %v %v", calls, sizes)
		}
	})

	t.Run("EnsurePlaylist", func(t *testing.T) {
		created := 0
		mux := http.NewServeMux()
		mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"id": "p1", "name": "road trip"},
					{"id": "p2", "name": "Road Trip"},
					{"id": "p3", "name": "Road Trip"},
				},
			})
		})
		mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]string{"id": "user1"})
		})
		mux.HandleFunc("POST /users/user1/playlists", func(w http.ResponseWriter, r *http.Request) {
			created++
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["public"] != false {
				t.Errorf("expected private playlist, got %v", body["public"])
			}
			writeJSON(t, w, map[string]any{"id": "new", "name": body["name"]})
		})

		conn, _ := newSpotifyTest(t, mux, validToken())

		got, err := conn.EnsurePlaylist(ctx, "Road Trip")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "p2" {
			t.Errorf("expected first exact match p2, got %s", got.ID)
		}

		got, err = conn.EnsurePlaylist(ctx, "Workout")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "new" || got.Name != "Workout" || created != 1 {
			t.Errorf("expected created playlist, got %+v (created=%d)", got, created)
		}
	})

	t.Run("SearchTrack", func(t *testing.T) {
		items := []map[string]any{}
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("type") != "track" || q.Get("limit") != "5" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			if q.Get("q") != "Song Artist Album" {
				t.Errorf("expected title artist album query, got %q", q.Get("q"))
			}
			writeJSON(t, w, map[string]any{"tracks": map[string]any{"items": items}})
		})

		conn, _ := newSpotifyTest(t, mux, validToken())
		query := tu.NewTrack("yt1", "Song", "Artist", "Album")

		got, err := conn.SearchTrack(ctx, query)
		if err != nil || got != nil {
			t.Fatalf("expected no match, got %+v %v", got, err)
		}

		items = []map[string]any{
			spotifyItem("live", "Song - Live", "Artist", "Album"),
			spotifyItem("exact", "song", "artist", "album"),
		}
		got, err = conn.SearchTrack(ctx, query)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "exact" {
			t.Errorf("expected exact match, got %s", got.ID)
		}

		items = items[:1]
		got, _ = conn.SearchTrack(ctx, query)
		if got == nil || got.ID != "live" {
			t.Errorf("expected fallback to first result, got %+v", got)
		}
	})

	t.Run("Refreshes Expired Token", func(t *testing.T) {
		refreshes := 0
		mux := http.NewServeMux()
		mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
			refreshes++
			r.ParseForm()
			if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh" {
				t.Errorf("unexpected refresh form: %v", r.Form)
			}
			writeJSON(t, w, map[string]any{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600})
		})
		mux.HandleFunc("GET /playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer fresh" {
				t.Errorf("expected refreshed token, got %q", r.Header.Get("Authorization"))
			}
			writeJSON(t, w, map[string]any{"items": []any{}})
		})

		expired := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Hour)}
		conn, store := newSpotifyTest(t, mux, expired)

		if !conn.TokenReady(ctx) {
			t.Error("expired token with access token should still report ready")
		}
		if _, err := conn.ListTracks(ctx, "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var saved oauth2.Token
		store.Get(ctx, spotifyTokenKey, &saved)
		if saved.AccessToken != "fresh" || saved.RefreshToken != "refresh" {
			t.Errorf("refreshed token not persisted: %+v", saved)
		}
		if refreshes != 1 {
			t.Errorf("expected 1 refresh, got %d", refreshes)
		}
	})

	t.Run("Expired Token Without Refresh", func(t *testing.T) {
		expired := &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}
		conn, _ := newSpotifyTest(t, http.NewServeMux(), expired)
		if _, err := conn.ListPlaylists(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("OAuth Flow", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			if r.Form.Get("code") != "the-code" {
				t.Errorf("expected code the-code, got %q", r.Form.Get("code"))
			}
			writeJSON(t, w, map[string]any{"access_token": "granted", "refresh_token": "r", "token_type": "Bearer", "expires_in": 3600})
		})

		conn, store := newSpotifyTest(t, mux, nil)

		authURL, err := conn.AuthURL(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		parsed, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("bad auth URL: %v", err)
		}
		state := parsed.Query().Get("state")
		if state == "" || parsed.Query().Get("client_id") != "client" {
			t.Fatalf("auth URL missing state or client_id: %s", authURL)
		}
		if !strings.Contains(parsed.Query().Get("scope"), "playlist-modify-private") {
			t.Errorf("auth URL missing modify scope: %s", authURL)
		}

		if err := conn.CompleteAuth(ctx, url.Values{"code": {"the-code"}, "state": {"forged"}}); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
		if err := conn.CompleteAuth(ctx, url.Values{"state": {state}}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing code, got %v", err)
		}
		if err := conn.CompleteAuth(ctx, url.Values{"error": {"access_denied"}}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated for denied consent, got %v", err)
		}

		if err := conn.CompleteAuth(ctx, url.Values{"code": {"the-code"}, "state": {state}}); err != nil {
			t.Fatalf("unexpected error completing auth: %v", err)
		}
		if !conn.TokenReady(ctx) {
			t.Error("token should be ready after auth")
		}
		if store.Has("spotify_oauth_state") {
			t.Error("oauth state should be consumed")
		}

		if err := conn.CompleteAuth(ctx, url.Values{"code": {"the-code"}, "state": {state}}); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("replayed state should be rejected, got %v", err)
		}
	})
}
