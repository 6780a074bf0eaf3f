package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const groupsKey = "sync_groups"

// SnapshotKey returns the state key holding the last synced digest of a group.
func SnapshotKey(groupID string) string {
	return "sync_snapshot::" + groupID
}

// Registry persists sync groups as a single list in a [models.StateStore].
//
// Every mutation is a read-modify-write under the registry mutex.
type Registry struct {
	store models.StateStore
	mu    sync.Mutex
}

func NewRegistry(store models.StateStore) *Registry {
	return &Registry{store: store}
}

// Load returns every group in persisted order.
func (r *Registry) Load(ctx context.Context) ([]models.SyncGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Registry) load(ctx context.Context) ([]models.SyncGroup, error) {
	groups := []models.SyncGroup{}
	if _, err := r.store.Get(ctx, groupsKey, &groups); err != nil {
		return nil, fmt.Errorf("failed to load sync groups: %w", err)
	}
	for i := range groups {
		if groups[i].Playlists == nil {
			groups[i].Playlists = map[models.ServiceType]string{}
		}
	}
	return groups, nil
}

func (r *Registry) save(ctx context.Context, groups []models.SyncGroup) error {
	if err := r.store.Set(ctx, groupsKey, groups); err != nil {
		return fmt.Errorf("failed to save sync groups: %w", err)
	}
	return nil
}

// Create appends a new group with a freshly generated ID.
func (r *Registry) Create(ctx context.Context, name string, primary models.ServiceType, playlists map[models.ServiceType]string) (*models.SyncGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", shared.ErrInvalidInput)
	}
	if !primary.Valid() {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidService, primary)
	}
	mapping, err := cleanPlaylists(playlists)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	groups, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	group := models.SyncGroup{
		ID:             shared.GenerateID(),
		Name:           name,
		PrimaryService: primary,
		Playlists:      mapping,
	}
	if err := r.save(ctx, append(groups, group)); err != nil {
		return nil, err
	}
	return &group, nil
}

// Get returns the group with id or [shared.ErrGroupNotFound].
func (r *Registry) Get(ctx context.Context, id string) (*models.SyncGroup, error) {
	groups, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID == id {
			return &g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrGroupNotFound, id)
}

// Update replaces the group's playlist mapping wholesale. ID, name and primary service are unchanged.
func (r *Registry) Update(ctx context.Context, id string, playlists map[models.ServiceType]string) (*models.SyncGroup, error) {
	mapping, err := cleanPlaylists(playlists)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	groups, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].ID != id {
			continue
		}
		groups[i].Playlists = mapping
		if err := r.save(ctx, groups); err != nil {
			return nil, err
		}
		updated := groups[i].Clone()
		return &updated, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrGroupNotFound, id)
}

// Delete removes the group and discards its snapshot.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	groups, err := r.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]models.SyncGroup, 0, len(groups))
	for _, g := range groups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	if len(kept) == len(groups) {
		return fmt.Errorf("%w: %s", shared.ErrGroupNotFound, id)
	}

	if err := r.save(ctx, kept); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, SnapshotKey(id)); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// cleanPlaylists copies the mapping, dropping blank playlist IDs and rejecting unknown services.
func cleanPlaylists(playlists map[models.ServiceType]string) (map[models.ServiceType]string, error) {
	mapping := make(map[models.ServiceType]string, len(playlists))
	for service, id := range playlists {
		if !service.Valid() {
			return nil, fmt.Errorf("%w: %q", shared.ErrInvalidService, service)
		}
		if id = strings.TrimSpace(id); id != "" {
			mapping[service] = id
		}
	}
	return mapping, nil
}
