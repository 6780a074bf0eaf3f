package ui

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	tu "github.com/desertthunder/plsync/internal/testing"
)

func newTestModel(t *testing.T) (*Model, chan tasks.ProgressUpdate) {
	t.Helper()

	spotify := tu.NewStubConnector(models.Spotify)
	spotify.SetTracks("sp-1", []models.Track{tu.NewTrack("s1", "Song", "Artist", "Album")})
	apple := tu.NewStubConnector(models.AppleMusic)
	apple.Catalog = []models.Track{tu.NewTrack("a1", "Song", "Artist", "Album")}

	progress := make(chan tasks.ProgressUpdate, 100)
	manager := tasks.NewSyncManager(tasks.Options{
		Store:      tu.NewMemoryStore(),
		Connectors: services.Connectors{models.Spotify: spotify, models.AppleMusic: apple},
		Logger:     shared.NewLogger(io.Discard),
		Progress:   progress,
	})
	if _, err := manager.Registry().Create(context.Background(), "Road Trip", models.Spotify, map[models.ServiceType]string{
		models.Spotify:    "sp-1",
		models.AppleMusic: "am-1",
	}); err != nil {
		t.Fatal(err)
	}

	m := NewModel(context.Background(), manager, progress)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(m.loadGroups()())
	return m, progress
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModelLoadsGroups(t *testing.T) {
	m, _ := newTestModel(t)

	if len(m.groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(m.groups))
	}
	if len(m.connectors) != 3 {
		t.Errorf("expected every service in connector status, got %d", len(m.connectors))
	}
	view := m.View()
	if !strings.Contains(view, "Road Trip") {
		t.Errorf("expected group in view, got %q", view)
	}
	if !strings.Contains(view, "No sweep yet") {
		t.Errorf("expected empty sweep status, got %q", view)
	}
}

func TestModelSweep(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(keyPress("s"))
	if cmd == nil {
		t.Fatal("expected sweep command")
	}
	if !m.sweeping {
		t.Error("expected sweeping flag")
	}
	if _, again := m.Update(keyPress("s")); again != nil {
		t.Error("expected second sweep request to be ignored")
	}

	m.Update(cmd())
	if m.sweeping {
		t.Error("expected sweep to finish")
	}
	if m.lastSweep == nil || m.lastSweep.Count(models.RunSynced) != 1 {
		t.Fatalf("expected one synced group, got %#v", m.lastSweep)
	}
	if !strings.Contains(m.View(), "1 synced") {
		t.Errorf("expected summary in view, got %q", m.View())
	}
}

func TestModelProgress(t *testing.T) {
	m, progress := newTestModel(t)

	m.manager.RunOnce(context.Background())

	for len(progress) > 0 {
		_, cmd := m.Update(m.waitForProgress()())
		if cmd == nil {
			t.Fatal("expected to keep listening for progress")
		}
	}
	if len(m.activity) == 0 || len(m.activity) > maxActivity {
		t.Errorf("expected bounded activity log, got %d lines", len(m.activity))
	}
	gr, ok := m.results[m.groups[0].ID]
	if !ok || gr.Status != models.RunSynced {
		t.Errorf("expected group result from progress, got %#v", gr)
	}
}

func TestModelDetailView(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(keyPress("enter"))
	if m.view != GroupDetailView || m.selected == nil {
		t.Fatal("expected detail view")
	}
	view := m.View()
	for _, want := range []string{"Road Trip", "Primary: Spotify (sp-1)", "Mirror:  Apple Music (am-1)", "Not synced yet"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in detail view, got %q", want, view)
		}
	}

	m.Update(keyPress("esc"))
	if m.view != GroupListView || m.selected != nil {
		t.Error("expected to return to list")
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestMirrorNames(t *testing.T) {
	g := models.SyncGroup{PrimaryService: models.Spotify, Playlists: map[models.ServiceType]string{models.Spotify: "x"}}
	if got := mirrorNames(g); got != "no mirrors" {
		t.Errorf("expected no mirrors, got %q", got)
	}
	g.Playlists[models.YouTubeMusic] = "y"
	g.Playlists[models.AppleMusic] = "a"
	if got := mirrorNames(g); got != "Apple Music, YouTube Music" {
		t.Errorf("unexpected names %q", got)
	}
}
