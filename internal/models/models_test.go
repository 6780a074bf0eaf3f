package models

import (
	"testing"
	"time"
)

func TestTrackSignature(t *testing.T) {
	tc := []struct {
		name  string
		track Track
		want  string
	}{
		{
			name:  "basic normalization",
			track: Track{Title: "Song", Artists: []string{"Artist"}, Album: "Album"},
			want:  "song|artist|album",
		},
		{
			name:  "multiple artists joined",
			track: Track{Title: "Duet", Artists: []string{"First", "SECOND"}},
			want:  "duet|first second|",
		},
		{
			name:  "missing album",
			track: Track{Title: "Solo", Artists: []string{"Someone"}},
			want:  "solo|someone|",
		},
		{
			name:  "no artists",
			track: Track{Title: "Untitled"},
			want:  "untitled||",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.Signature(); got != tt.want {
				t.Errorf("Signature() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("ignores id isrc and duration", func(t *testing.T) {
		a := Track{ID: "s1", Title: "Song", Artists: []string{"Artist"}, Album: "Album", ISRC: "USAAA0000001", DurationMS: 1000}
		b := Track{ID: "a1", Title: "SONG", Artists: []string{"artist"}, Album: "album", ISRC: "GBBBB0000002"}
		if !SameSong(a, b) {
			t.Error("expected tracks with equal signatures to be the same song")
		}
	})

	t.Run("different album is a different song", func(t *testing.T) {
		a := Track{Title: "Song", Artists: []string{"Artist"}, Album: "Album"}
		b := Track{Title: "Song", Artists: []string{"Artist"}, Album: "Live"}
		if SameSong(a, b) {
			t.Error("expected different albums to produce different signatures")
		}
	})
}

func TestParseServiceType(t *testing.T) {
	for _, st := range ServiceTypes {
		got, err := ParseServiceType(string(st))
		if err != nil {
			t.Fatalf("ParseServiceType(%q) returned error: %v", st, err)
		}
		if got != st {
			t.Errorf("ParseServiceType(%q) = %q", st, got)
		}
	}

	if got, err := ParseServiceType(" Spotify "); err != nil || got != Spotify {
		t.Errorf("expected trimmed, case-folded input to parse, got %q, %v", got, err)
	}

	if _, err := ParseServiceType("tidal"); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestSyncGroup(t *testing.T) {
	group := SyncGroup{
		ID:             "g1",
		Name:           "Mirror",
		PrimaryService: Spotify,
		Playlists: map[ServiceType]string{
			YouTubeMusic: "yt-1",
			Spotify:      "sp-1",
			AppleMusic:   "am-1",
		},
	}

	t.Run("SourcePlaylist", func(t *testing.T) {
		id, ok := group.SourcePlaylist()
		if !ok || id != "sp-1" {
			t.Errorf("SourcePlaylist() = %q, %v", id, ok)
		}

		empty := SyncGroup{PrimaryService: Spotify, Playlists: map[ServiceType]string{AppleMusic: "am-1"}}
		if _, ok := empty.SourcePlaylist(); ok {
			t.Error("expected no source playlist when primary entry is missing")
		}
	})

	t.Run("Targets excludes primary and is sorted", func(t *testing.T) {
		targets := group.Targets()
		if len(targets) != 2 {
			t.Fatalf("expected 2 targets, got %d", len(targets))
		}
		if targets[0].Service != AppleMusic || targets[1].Service != YouTubeMusic {
			t.Errorf("unexpected target order: %+v", targets)
		}
	})

	t.Run("Clone copies playlists", func(t *testing.T) {
		clone := group.Clone()
		clone.Playlists[AppleMusic] = "changed"
		if group.Playlists[AppleMusic] != "am-1" {
			t.Error("mutating clone changed the original")
		}
	})
}

func TestSyncRunValidate(t *testing.T) {
	now := time.Now()

	valid := &SyncRun{GroupID: "g1", Status: RunSynced, StartedAt: now, FinishedAt: now.Add(time.Second)}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid run, got %v", err)
	}

	tc := []struct {
		name string
		run  SyncRun
	}{
		{name: "missing group", run: SyncRun{Status: RunSynced, StartedAt: now, FinishedAt: now}},
		{name: "bad status", run: SyncRun{GroupID: "g1", Status: "done", StartedAt: now, FinishedAt: now}},
		{name: "finished before start", run: SyncRun{GroupID: "g1", Status: RunFailed, StartedAt: now, FinishedAt: now.Add(-time.Second)}},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
