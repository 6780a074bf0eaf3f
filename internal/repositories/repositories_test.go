package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get Missing Key", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		dest := "default"
		ok, err := repo.Get(ctx, "missing", &dest)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("missing key should report absent")
		}
		if dest != "default" {
			t.Errorf("dest should be untouched, got %q", dest)
		}
	})

	t.Run("Set And Get", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		group := models.SyncGroup{
			ID:             "g1",
			Name:           "Road Trip",
			PrimaryService: models.Spotify,
			Playlists:      map[models.ServiceType]string{models.Spotify: "sp-1", models.YouTubeMusic: "yt-1"},
		}
		if err := repo.Set(ctx, "sync_groups", []models.SyncGroup{group}); err != nil {
			t.Fatalf("failed to set: %v", err)
		}

		var got []models.SyncGroup
		ok, err := repo.Get(ctx, "sync_groups", &got)
		if err != nil || !ok {
			t.Fatalf("expected stored value, ok=%v err=%v", ok, err)
		}
		if len(got) != 1 || got[0].Playlists[models.YouTubeMusic] != "yt-1" {
			t.Errorf("unexpected round trip: %+v", got)
		}
	})

	t.Run("Set Overwrites", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		if err := repo.Set(ctx, "sync_snapshot::g1", "aaa"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Set(ctx, "sync_snapshot::g1", "bbb"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}

		var got string
		if _, err := repo.Get(ctx, "sync_snapshot::g1", &got); err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got != "bbb" {
			t.Errorf("expected bbb, got %s", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		if err := repo.Set(ctx, "spotify_token", map[string]string{"access_token": "x"}); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Delete(ctx, "spotify_token"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}

		var got map[string]string
		if ok, _ := repo.Get(ctx, "spotify_token", &got); ok {
			t.Error("deleted key should be absent")
		}

		if err := repo.Delete(ctx, "spotify_token"); err != nil {
			t.Errorf("deleting absent key should succeed: %v", err)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		for _, key := range []string{"sync_snapshot::b", "sync_snapshot::a", "sync_groups", "spotify_token"} {
			if err := repo.Set(ctx, key, 1); err != nil {
				t.Fatalf("failed to set %s: %v", key, err)
			}
		}

		keys, err := repo.Keys(ctx, "sync_snapshot::")
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		if len(keys) != 2 || keys[0] != "sync_snapshot::a" || keys[1] != "sync_snapshot::b" {
			t.Errorf("unexpected keys: %v", keys)
		}

		keys, _ = repo.Keys(ctx, "sync_")
		if len(keys) != 3 {
			t.Errorf("underscore in prefix should match literally, got %v", keys)
		}
	})

	t.Run("Concurrent Writes", func(t *testing.T) {
		repo := NewStateRepository(setupTestDB(t))

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := repo.Set(ctx, fmt.Sprintf("k%d", i), i); err != nil {
					t.Errorf("set k%d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		keys, err := repo.Keys(ctx, "k")
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		if len(keys) != 20 {
			t.Errorf("expected 20 keys, got %d", len(keys))
		}
	})
}

func TestSyncRunRepository(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	newRun := func(groupID string, status models.RunStatus) *models.SyncRun {
		return &models.SyncRun{
			GroupID:    groupID,
			Status:     status,
			Digest:     "abc",
			Targets:    2,
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
		}
	}

	t.Run("Create", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))

		first := newRun("g1", models.RunSynced)
		if err := repo.Create(ctx, first); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		second := newRun("g1", models.RunUnchanged)
		if err := repo.Create(ctx, second); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if first.ID == "" {
			t.Error("run ID should be set after creation")
		}
		if first.Sequence != 1 || second.Sequence != 2 {
			t.Errorf("expected sequences 1 and 2, got %d and %d", first.Sequence, second.Sequence)
		}
	})

	t.Run("Create Invalid", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))

		if err := repo.Create(ctx, newRun("", models.RunSynced)); err == nil {
			t.Error("expected validation error for empty group")
		}
		if err := repo.Create(ctx, newRun("g1", "bogus")); err == nil {
			t.Error("expected validation error for unknown status")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))

		run := newRun("g1", models.RunPartial)
		run.FailedTargets = 1
		run.Message = "youtube_music: quota exceeded"
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunPartial || got.FailedTargets != 1 || got.Message != run.Message {
			t.Errorf("unexpected run: %+v", got)
		}
		if !got.StartedAt.Equal(start) {
			t.Errorf("expected started_at %v, got %v", start, got.StartedAt)
		}

		if _, err := repo.Get(ctx, "nonexistent"); err == nil {
			t.Error("expected error for missing run")
		}
	})

	t.Run("ListByGroup", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))

		for _, groupID := range []string{"g1", "g2", "g1", "g1"} {
			if err := repo.Create(ctx, newRun(groupID, models.RunSynced)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.ListByGroup(ctx, "g1", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if runs[0].Sequence < runs[1].Sequence {
			t.Error("runs should be newest first")
		}

		limited, _ := repo.ListByGroup(ctx, "g1", 2)
		if len(limited) != 2 {
			t.Errorf("expected 2 runs with limit, got %d", len(limited))
		}

		empty, _ := repo.ListByGroup(ctx, "missing", 0)
		if empty == nil || len(empty) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", empty)
		}
	})

	t.Run("Recent And DeleteByGroup", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))

		for _, groupID := range []string{"g1", "g2", "g1"} {
			if err := repo.Record(ctx, *newRun(groupID, models.RunSynced)); err != nil {
				t.Fatalf("failed to record run: %v", err)
			}
		}

		recent, err := repo.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list recent: %v", err)
		}
		if len(recent) != 3 {
			t.Errorf("expected 3 recent runs, got %d", len(recent))
		}

		n, err := repo.DeleteByGroup(ctx, "g1")
		if err != nil {
			t.Fatalf("failed to delete runs: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 deleted rows, got %d", n)
		}
	})
}
