package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	tu "github.com/desertthunder/plsync/internal/testing"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("load on empty store", func(t *testing.T) {
		r := NewRegistry(tu.NewMemoryStore())
		groups, err := r.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if groups == nil || len(groups) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", groups)
		}
	})

	t.Run("group lifecycle", func(t *testing.T) {
		store := tu.NewMemoryStore()
		r := NewRegistry(store)

		group, err := r.Create(ctx, "Test Group", models.Spotify, map[models.ServiceType]string{models.Spotify: "spotify-1"})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if group.ID == "" {
			t.Fatal("expected generated id")
		}

		groups, _ := r.Load(ctx)
		if len(groups) != 1 || groups[0].ID != group.ID {
			t.Fatalf("expected created group in load, got %#v", groups)
		}

		updated, err := r.Update(ctx, group.ID, map[models.ServiceType]string{
			models.Spotify:    "spotify-1",
			models.AppleMusic: "apple-1",
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.ID != group.ID || updated.Name != "Test Group" || updated.PrimaryService != models.Spotify {
			t.Errorf("identity changed on update: %#v", updated)
		}

		groups, _ = r.Load(ctx)
		if groups[0].Playlists[models.AppleMusic] != "apple-1" {
			t.Errorf("expected apple mapping, got %v", groups[0].Playlists)
		}

		if err := store.Set(ctx, SnapshotKey(group.ID), "digest"); err != nil {
			t.Fatal(err)
		}
		if err := r.Delete(ctx, group.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		groups, _ = r.Load(ctx)
		if len(groups) != 0 {
			t.Errorf("expected no groups after delete, got %d", len(groups))
		}
		if store.Has(SnapshotKey(group.ID)) {
			t.Error("expected snapshot key to be removed")
		}
	})

	t.Run("update replaces mapping wholesale", func(t *testing.T) {
		r := NewRegistry(tu.NewMemoryStore())
		group, _ := r.Create(ctx, "G", models.Spotify, map[models.ServiceType]string{
			models.Spotify:      "s",
			models.YouTubeMusic: "y",
		})

		updated, err := r.Update(ctx, group.ID, map[models.ServiceType]string{models.Spotify: "s2"})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := updated.Playlists[models.YouTubeMusic]; ok {
			t.Error("expected youtube mapping to be dropped")
		}
		if updated.Playlists[models.Spotify] != "s2" {
			t.Errorf("expected s2, got %q", updated.Playlists[models.Spotify])
		}
	})

	t.Run("persisted order", func(t *testing.T) {
		r := NewRegistry(tu.NewMemoryStore())
		for _, name := range []string{"a", "b", "c"} {
			if _, err := r.Create(ctx, name, models.Spotify, nil); err != nil {
				t.Fatal(err)
			}
		}
		groups, _ := r.Load(ctx)
		for i, want := range []string{"a", "b", "c"} {
			if groups[i].Name != want {
				t.Errorf("position %d: expected %q, got %q", i, want, groups[i].Name)
			}
			if groups[i].Playlists == nil {
				t.Errorf("group %q has nil playlists", groups[i].Name)
			}
		}
	})

	t.Run("get", func(t *testing.T) {
		r := NewRegistry(tu.NewMemoryStore())
		group, _ := r.Create(ctx, "G", models.AppleMusic, nil)

		got, err := r.Get(ctx, group.ID)
		if err != nil || got.Name != "G" {
			t.Errorf("expected group G, got %#v (%v)", got, err)
		}
		if _, err := r.Get(ctx, "missing"); !errors.Is(err, shared.ErrGroupNotFound) {
			t.Errorf("expected ErrGroupNotFound, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		r := NewRegistry(tu.NewMemoryStore())
		if _, err := r.Update(ctx, "missing", nil); !errors.Is(err, shared.ErrGroupNotFound) {
			t.Errorf("update: expected ErrGroupNotFound, got %v", err)
		}
		if err := r.Delete(ctx, "missing"); !errors.Is(err, shared.ErrGroupNotFound) {
			t.Errorf("delete: expected ErrGroupNotFound, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tc := []struct {
			name      string
			group     string
			primary   models.ServiceType
			playlists map[models.ServiceType]string
			want      error
		}{
			{name: "blank name", group: "  ", primary: models.Spotify, want: shared.ErrInvalidInput},
			{name: "unknown primary", group: "G", primary: "tidal", want: shared.ErrInvalidService},
			{name: "unknown mapping", group: "G", primary: models.Spotify, playlists: map[models.ServiceType]string{"tidal": "x"}, want: shared.ErrInvalidService},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				r := NewRegistry(tu.NewMemoryStore())
				if _, err := r.Create(ctx, tt.group, tt.primary, tt.playlists); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("blank playlist ids dropped", func(t *testing.T) {
		r := NewRegistry(tu.NewMemoryStore())
		group, err := r.Create(ctx, "G", models.Spotify, map[models.ServiceType]string{
			models.Spotify:    " s1 ",
			models.AppleMusic: "",
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(group.Playlists) != 1 || group.Playlists[models.Spotify] != "s1" {
			t.Errorf("unexpected mapping %v", group.Playlists)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.GetErr = errors.New("disk gone")
		r := NewRegistry(store)
		if _, err := r.Load(ctx); err == nil {
			t.Error("expected load error")
		}
		if _, err := r.Create(ctx, "G", models.Spotify, nil); err == nil {
			t.Error("expected create error")
		}
	})
}

func TestDigest(t *testing.T) {
	track := tu.NewTrack("s1", "Song", "Artist", "Album")

	t.Run("known value", func(t *testing.T) {
		want := "8b97c0981945d923e288c0da510d18640266cdfe48e7cab2d4658f586a391cea"
		if got := Digest([]models.Track{track}); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		want := "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945"
		if got := Digest(nil); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := Digest([]models.Track{track, tu.NewTrack("s2", "Other", "B", "")})
		b := Digest([]models.Track{track, tu.NewTrack("s2", "Other", "B", "")})
		if a != b {
			t.Error("expected equal digests for equal input")
		}
	})

	t.Run("nil artists match empty artists", func(t *testing.T) {
		a := Digest([]models.Track{{ID: "x", Title: "T"}})
		b := Digest([]models.Track{{ID: "x", Title: "T", Artists: []string{}}})
		if a != b {
			t.Error("expected nil and empty artists to hash the same")
		}
	})

	base := Digest([]models.Track{track})
	tc := []struct {
		name   string
		tracks []models.Track
	}{
		{name: "id", tracks: []models.Track{tu.NewTrack("s9", "Song", "Artist", "Album")}},
		{name: "title", tracks: []models.Track{tu.NewTrack("s1", "song", "Artist", "Album")}},
		{name: "artist", tracks: []models.Track{tu.NewTrack("s1", "Song", "Other", "Album")}},
		{name: "album", tracks: []models.Track{tu.NewTrack("s1", "Song", "Artist", "")}},
		{name: "isrc", tracks: []models.Track{{ID: "s1", Title: "Song", Artists: []string{"Artist"}, Album: "Album", ISRC: "USRC17607839"}}},
		{name: "extra track", tracks: []models.Track{track, track}},
	}
	for _, tt := range tc {
		t.Run("sensitive to "+tt.name, func(t *testing.T) {
			if Digest(tt.tracks) == base {
				t.Errorf("expected digest to change with %s", tt.name)
			}
		})
	}

	t.Run("order sensitive", func(t *testing.T) {
		other := tu.NewTrack("s2", "Other", "B", "")
		if Digest([]models.Track{track, other}) == Digest([]models.Track{other, track}) {
			t.Error("expected order to change digest")
		}
	})

	t.Run("duration ignored", func(t *testing.T) {
		timed := track
		timed.DurationMS = 1234
		if Digest([]models.Track{timed}) != base {
			t.Error("expected duration to be excluded from digest")
		}
	})
}
