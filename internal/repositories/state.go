package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/plsync/internal/models"
)

var _ models.StateStore = (*StateRepository)(nil)

// StateRepository implements [models.StateStore] on the state table.
//
// Values are stored as JSON text. Writes are serialized so a read following a completed
// write always observes it.
type StateRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStateRepository creates a new [StateRepository] with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get decodes the value stored under key into dest and reports whether the key exists.
//
// Absent keys leave dest untouched.
func (r *StateRepository) Get(ctx context.Context, key string, dest any) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query state %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return true, fmt.Errorf("failed to decode state %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key, replacing any previous value.
func (r *StateRepository) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}

// Keys returns the stored keys beginning with prefix in lexical order.
func (r *StateRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(prefix)
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM state WHERE key LIKE ? ESCAPE '\'`, escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query state keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan state key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}
