package formatter

import (
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	tu "github.com/desertthunder/plsync/internal/testing"
)

func testExport() PlaylistExport {
	one := tu.NewTrack("track1", "Song One", "Artist One", "Album One")
	one.DurationMS = 180000
	one.ISRC = "USRC12345678"
	two := tu.NewTrack("track2", "Song Two", "Artist Two", "")
	two.Artists = append(two.Artists, "Guest")
	two.DurationMS = 245000

	return PlaylistExport{
		Playlist: models.Playlist{ID: "test123", Name: "Test Playlist", Service: models.Spotify, TrackCount: 2},
		Tracks:   []models.Track{one, two},
	}
}

func testGroups() []models.SyncGroup {
	return []models.SyncGroup{
		{
			ID:             "g1",
			Name:           "Road Trip",
			PrimaryService: models.YouTubeMusic,
			Playlists: map[models.ServiceType]string{
				models.Spotify:      "sp-1",
				models.YouTubeMusic: "yt-1",
			},
		},
	}
}

func testRuns() []models.SyncRun {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.SyncRun{
		{Sequence: 2, GroupID: "g1", Status: models.RunPartial, Targets: 2, FailedTargets: 1,
			Message: "apple_music: boom", StartedAt: started, FinishedAt: started.Add(3 * time.Second)},
		{Sequence: 1, GroupID: "g1", Status: models.RunSynced, Targets: 2, Digest: "abc",
			StartedAt: started.Add(-time.Hour), FinishedAt: started.Add(-time.Hour)},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", JSON},
		{"json", JSON},
		{"YAML", YAML},
		{"yml", YAML},
		{"csv", CSV},
		{"md", Markdown},
		{"markdown", Markdown},
		{" txt ", Text},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseFormat("xml")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("extensions", func(t *testing.T) {
		want := map[Format]string{JSON: ".json", YAML: ".yaml", CSV: ".csv", Markdown: ".md", Text: ".txt"}
		for format, ext := range want {
			if got := format.Extension(); got != ext {
				t.Errorf("%s: expected %q, got %q", format, ext, got)
			}
		}
	})
}

func TestPlaylist(t *testing.T) {
	export := testExport()

	t.Run("CSV", func(t *testing.T) {
		data, err := Playlist(CSV, export)
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "ID,Title,Artists,Album,Duration,ISRC" {
			t.Errorf("unexpected headers: %v", records[0])
		}
		if records[1][4] != "3:00" || records[1][5] != "USRC12345678" {
			t.Errorf("unexpected first row: %v", records[1])
		}
		if records[2][2] != "Artist Two, Guest" || records[2][4] != "4:05" {
			t.Errorf("unexpected second row: %v", records[2])
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := Playlist(Markdown, export)
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Test Playlist",
			"**Service**: Spotify",
			"**Tracks**: 2",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. Artist Two, Guest - Song Two [4:05]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := Playlist(Text, export)
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Playlist: Test Playlist\nTracks: 2\n") {
			t.Errorf("unexpected header:\n%s", output)
		}
		if !strings.Contains(output, "1. Artist One - Song One\n") {
			t.Errorf("Text missing track1:\n%s", output)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := Playlist(JSON, export)
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{`"test123"`, `"Song One"`, `"USRC12345678"`} {
			if !strings.Contains(output, want) {
				t.Errorf("JSON missing %s", want)
			}
		}
	})

	t.Run("YAML", func(t *testing.T) {
		data, err := Playlist(YAML, export)
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}
		if !strings.Contains(string(data), "name: Test Playlist") {
			t.Errorf("YAML missing playlist name:\n%s", data)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := Playlist(Format("xml"), export); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestGroups(t *testing.T) {
	groups := testGroups()

	t.Run("CSV has a column per service", func(t *testing.T) {
		data, err := Groups(CSV, groups)
		if err != nil {
			t.Fatalf("Groups failed: %v", err)
		}
		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if got := strings.Join(records[0], ","); got != "ID,Name,Primary,spotify,apple_music,youtube_music" {
			t.Errorf("unexpected headers: %s", got)
		}
		if got := strings.Join(records[1], ","); got != "g1,Road Trip,youtube_music,sp-1,,yt-1" {
			t.Errorf("unexpected row: %s", got)
		}
	})

	t.Run("Markdown lists primary first", func(t *testing.T) {
		data, err := Groups(Markdown, groups)
		if err != nil {
			t.Fatalf("Groups failed: %v", err)
		}
		output := string(data)
		primary := strings.Index(output, "**YouTube Music** (primary): `yt-1`")
		mirror := strings.Index(output, "**Spotify** (mirror): `sp-1`")
		if primary < 0 || mirror < 0 {
			t.Fatalf("Markdown missing playlists:\n%s", output)
		}
		if primary > mirror {
			t.Errorf("expected primary before mirrors:\n%s", output)
		}
	})

	t.Run("Markdown without groups", func(t *testing.T) {
		data, err := Groups(Markdown, nil)
		if err != nil {
			t.Fatalf("Groups failed: %v", err)
		}
		if !strings.Contains(string(data), "_No sync groups._") {
			t.Errorf("expected empty marker, got %s", data)
		}
	})

	t.Run("Text marks the primary", func(t *testing.T) {
		data, err := Groups(Text, groups)
		if err != nil {
			t.Fatalf("Groups failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "Road Trip [g1]") {
			t.Errorf("Text missing group header:\n%s", output)
		}
		if !strings.Contains(output, "  * YouTube Music  yt-1") {
			t.Errorf("Text missing primary marker:\n%s", output)
		}
	})

	t.Run("YAML", func(t *testing.T) {
		data, err := Groups(YAML, groups)
		if err != nil {
			t.Fatalf("Groups failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "primary_service: youtube_music") {
			t.Errorf("YAML missing primary service:\n%s", output)
		}
	})
}

func TestRuns(t *testing.T) {
	runs := testRuns()

	t.Run("CSV", func(t *testing.T) {
		data, err := Runs(CSV, runs)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		row := records[1]
		if row[0] != "2" || row[2] != "partial" || row[4] != "1" || row[6] != "2024-05-01T12:00:00Z" || row[7] != "3s" {
			t.Errorf("unexpected row: %v", row)
		}
	})

	t.Run("Markdown escapes pipes", func(t *testing.T) {
		run := testRuns()[0]
		run.Message = "a|b"
		data, err := Runs(Markdown, []models.SyncRun{run})
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		if !strings.Contains(string(data), `a\|b`) {
			t.Errorf("expected escaped pipe:\n%s", data)
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := Runs(Text, runs)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(lines))
		}
		if !strings.Contains(lines[0], "1/2 mirrors ok") || !strings.HasSuffix(lines[0], "apple_music: boom") {
			t.Errorf("unexpected line: %q", lines[0])
		}
		if !strings.Contains(lines[1], "2/2 mirrors ok") {
			t.Errorf("unexpected line: %q", lines[1])
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, ""},
		{-5, ""},
		{999, "0:00"},
		{61000, "1:01"},
		{3600000, "60:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "groups.csv")
	if err := WriteFile(path, []byte("a,b\n")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	tu.AssertFileExists(t, path)
	if got := tu.MustReadFile(t, path); got != "a,b\n" {
		t.Errorf("unexpected content %q", got)
	}
}
