package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// SyncRunRepository persists [models.SyncRun] history.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new [SyncRunRepository] with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

const syncRunColumns = `
	id, sequence, group_id, status, digest, targets,
	failed_targets, message, started_at, finished_at
`

// Create inserts run with a generated ID and sequence.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.ID = shared.GenerateID()
	run.Sequence = sequence

	query := `INSERT INTO sync_runs (` + syncRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Sequence,
		run.GroupID,
		string(run.Status),
		nullable(run.Digest),
		run.Targets,
		run.FailedTargets,
		nullable(run.Message),
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Record stores run. It satisfies the sync manager's recorder contract.
func (r *SyncRunRepository) Record(ctx context.Context, run models.SyncRun) error {
	return r.Create(ctx, &run)
}

// Get retrieves a sync run by ID.
func (r *SyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// ListByGroup returns the most recent runs for groupID, newest first.
//
// A limit of zero or less returns every run.
func (r *SyncRunRepository) ListByGroup(ctx context.Context, groupID string, limit int) ([]models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE group_id = ? ORDER BY sequence DESC`
	args := []any{groupID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// Recent returns the latest runs across all groups, newest first.
func (r *SyncRunRepository) Recent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY sequence DESC LIMIT ?`
	return r.list(ctx, query, limit)
}

// DeleteByGroup removes the history of groupID and returns the number of rows deleted.
func (r *SyncRunRepository) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sync_runs WHERE group_id = ?", groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sync runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func (r *SyncRunRepository) list(ctx context.Context, query string, args ...any) ([]models.SyncRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []models.SyncRun{}
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single [sql.Row] into a [models.SyncRun]
func (r *SyncRunRepository) scanOne(row *sql.Row) (*models.SyncRun, error) {
	run, err := scanSyncRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found")
	}
	return run, err
}

// scanRow scans a row from [sql.Rows] into a [models.SyncRun]
func (r *SyncRunRepository) scanRow(rows *sql.Rows) (*models.SyncRun, error) {
	return scanSyncRun(rows)
}

func scanSyncRun(s scanner) (*models.SyncRun, error) {
	var (
		run     models.SyncRun
		status  string
		digest  sql.NullString
		message sql.NullString
	)

	err := s.Scan(
		&run.ID, &run.Sequence, &run.GroupID, &status, &digest, &run.Targets,
		&run.FailedTargets, &message, &run.StartedAt, &run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.Digest = digest.String
	run.Message = message.String
	return &run, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
