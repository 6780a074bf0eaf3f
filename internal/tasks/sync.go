package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// ErrTargetPanic marks a mirror update aborted by a panicking connector.
var ErrTargetPanic = errors.New("target update panicked")

// TargetStatus is the outcome of updating one mirror playlist.
type TargetStatus string

const (
	TargetReplaced TargetStatus = "replaced"
	TargetSkipped  TargetStatus = "skipped"
	TargetFailed   TargetStatus = "failed"
)

// TargetResult describes what happened to one mirror during a group reconciliation.
type TargetResult struct {
	Service    models.ServiceType `json:"service"`
	PlaylistID string             `json:"playlist_id"`
	Status     TargetStatus       `json:"status"`
	Matched    int                `json:"matched"` // tracks found on the target catalog
	Total      int                `json:"total"`   // source tracks
	Message    string             `json:"message,omitempty"`
	Err        error              `json:"-"`
}

// GroupResult is the outcome of reconciling one group.
type GroupResult struct {
	GroupID    string           `json:"group_id"`
	GroupName  string           `json:"group_name"`
	Status     models.RunStatus `json:"status"`
	Digest     string           `json:"digest,omitempty"`
	Targets    []TargetResult   `json:"targets"`
	Message    string           `json:"message,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Err        error            `json:"-"`
}

// FailedTargets counts targets whose update failed.
func (r GroupResult) FailedTargets() int {
	n := 0
	for _, t := range r.Targets {
		if t.Status == TargetFailed {
			n++
		}
	}
	return n
}

// SweepResult is the outcome of one pass over every group.
type SweepResult struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Groups     []GroupResult `json:"groups"`
	Message    string        `json:"message,omitempty"`
	Err        error         `json:"-"`
}

// Count returns how many groups ended with status.
func (r SweepResult) Count(status models.RunStatus) int {
	n := 0
	for _, g := range r.Groups {
		if g.Status == status {
			n++
		}
	}
	return n
}

// Summary returns a one-line description of the sweep.
func (r SweepResult) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("sweep failed: %v", r.Err)
	}
	return fmt.Sprintf("%d group(s): %d synced, %d unchanged, %d skipped, %d partial, %d failed",
		len(r.Groups),
		r.Count(models.RunSynced),
		r.Count(models.RunUnchanged),
		r.Count(models.RunSkipped),
		r.Count(models.RunPartial),
		r.Count(models.RunFailed),
	)
}

// Recorder persists group outcomes. Implemented by repositories.SyncRunRepository.
type Recorder interface {
	Record(ctx context.Context, run models.SyncRun) error
}

// SchedulerState is the lifecycle state of the background loop.
type SchedulerState string

const (
	StateIdle     SchedulerState = "idle"
	StateRunning  SchedulerState = "running"
	StateStopping SchedulerState = "stopping"
	StateStopped  SchedulerState = "stopped"
)

// Options configures a [SyncManager].
type Options struct {
	Store      models.StateStore
	Connectors services.Connectors
	Registry   *Registry // defaults to a registry over Store
	Recorder   Recorder  // optional
	Logger     *log.Logger

	// MaxParallelTargets bounds concurrent mirror updates within a group; values below 1 mean 1.
	MaxParallelTargets int
	// RetryFailedTargets withholds the snapshot when any mirror failed so the next sweep retries.
	RetryFailedTargets bool

	Progress chan<- ProgressUpdate
}

// SyncManager reconciles sync groups and owns the polling loop.
//
// Manual sweeps ([SyncManager.RunOnce]) and scheduled sweeps share one gate and never overlap.
type SyncManager struct {
	store       models.StateStore
	connectors  services.Connectors
	registry    *Registry
	recorder    Recorder
	logger      *log.Logger
	maxParallel int
	retryFailed bool
	progress    chan<- ProgressUpdate

	gate sync.Mutex

	mu    sync.Mutex
	state SchedulerState
	stop  chan struct{}
	done  chan struct{}
	last  *SweepResult
}

func NewSyncManager(opts Options) *SyncManager {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(opts.Store)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	maxParallel := opts.MaxParallelTargets
	if maxParallel < 1 {
		maxParallel = 1
	}
	connectors := opts.Connectors
	if connectors == nil {
		connectors = services.Connectors{}
	}

	return &SyncManager{
		store:       opts.Store,
		connectors:  connectors,
		registry:    registry,
		recorder:    opts.Recorder,
		logger:      logger,
		maxParallel: maxParallel,
		retryFailed: opts.RetryFailedTargets,
		progress:    opts.Progress,
		state:       StateIdle,
	}
}

// Registry returns the group registry the manager sweeps.
func (m *SyncManager) Registry() *Registry { return m.registry }

// Connectors returns the injected connectors.
func (m *SyncManager) Connectors() services.Connectors { return m.connectors }

// State reports the lifecycle state of the background loop.
func (m *SyncManager) State() SchedulerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastSweep returns the most recent sweep result, or nil before the first sweep.
func (m *SyncManager) LastSweep() *SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	last := *m.last
	return &last
}

// Start launches the background loop, sweeping every interval until [SyncManager.Stop] or ctx is done.
func (m *SyncManager) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", shared.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning || m.state == StateStopping {
		return shared.ErrAlreadyRunning
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.state = StateRunning
	go m.loop(ctx, interval, m.stop, m.done)

	m.logger.Info("Scheduler started", "interval", interval)
	return nil
}

// Stop signals the loop and waits for it to exit or for ctx to expire.
//
// A sweep in progress finishes before the loop exits.
func (m *SyncManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateRunning:
		m.state = StateStopping
		close(m.stop)
	case StateStopping:
	default:
		m.mu.Unlock()
		return shared.ErrNotRunning
	}
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		m.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for scheduler to stop: %v", shared.ErrTimeout, ctx.Err())
	}
}

// Done is closed when the current loop exits. It is nil before the first Start.
func (m *SyncManager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

func (m *SyncManager) loop(ctx context.Context, interval time.Duration, stop, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		close(done)
	}()

	for {
		if m.State() != StateRunning || ctx.Err() != nil {
			return
		}

		m.safeRunOnce(ctx)

		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// safeRunOnce keeps a panicking connector from killing the loop.
func (m *SyncManager) safeRunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Sweep panicked", "panic", r)
		}
	}()
	m.RunOnce(ctx)
}

// RunOnce performs one sweep over every group in registry order.
//
// A group's failure never prevents the remaining groups from being reconciled.
func (m *SyncManager) RunOnce(ctx context.Context) SweepResult {
	m.gate.Lock()
	defer m.gate.Unlock()

	result := SweepResult{StartedAt: time.Now(), Groups: []GroupResult{}}
	defer func() {
		m.mu.Lock()
		last := result
		m.last = &last
		m.mu.Unlock()
	}()

	groups, err := m.registry.Load(ctx)
	if err != nil {
		m.logger.Error("Failed to load sync groups", "error", err)
		result.Err = err
		result.Message = err.Error()
		result.FinishedAt = time.Now()
		return result
	}

	total := len(groups)
	sendProgress(m.progress, loadGroupsUpdate(total))

	for i, group := range groups {
		if ctx.Err() != nil {
			m.logger.Warn("Sweep interrupted", "remaining", total-i)
			result.Err = ctx.Err()
			break
		}
		gr := m.syncGroup(ctx, group, i+1, total)
		result.Groups = append(result.Groups, gr)
		sendProgress(m.progress, groupDoneUpdate(i+1, total, gr))
	}

	result.FinishedAt = time.Now()
	result.Message = result.Summary()
	m.logger.Info("Sweep finished", "groups", total, "took", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	sendProgress(m.progress, sweepDoneUpdate(result))
	return result
}

// SyncGroup reconciles one group. It waits for any running sweep to finish.
func (m *SyncManager) SyncGroup(ctx context.Context, group models.SyncGroup) GroupResult {
	m.gate.Lock()
	defer m.gate.Unlock()
	return m.syncGroup(ctx, group, 1, 1)
}

func (m *SyncManager) syncGroup(ctx context.Context, group models.SyncGroup, step, total int) (result GroupResult) {
	logger := m.logger.With("group", group.Name)
	result = GroupResult{
		GroupID:   group.ID,
		GroupName: group.Name,
		Targets:   []TargetResult{},
		StartedAt: time.Now(),
	}
	defer func() {
		result.FinishedAt = time.Now()
		m.record(ctx, result, logger)
	}()

	skip := func(msg string) GroupResult {
		logger.Debug("Skipping group", "reason", msg)
		result.Status = models.RunSkipped
		result.Message = msg
		return result
	}
	fail := func(msg string, err error) GroupResult {
		logger.Error(msg, "error", err)
		result.Status = models.RunFailed
		result.Message = fmt.Sprintf("%s: %v", msg, err)
		result.Err = err
		return result
	}

	primary, err := m.connectors.Get(group.PrimaryService)
	if err != nil {
		return skip(fmt.Sprintf("no connector for %s", group.PrimaryService))
	}
	if !primary.TokenReady(ctx) {
		return skip(fmt.Sprintf("%s is not authenticated", group.PrimaryService.DisplayName()))
	}
	sourceID, ok := group.SourcePlaylist()
	if !ok {
		return skip("no source playlist linked")
	}

	sendProgress(m.progress, fetchSourceUpdate(step, total, group))
	tracks, err := primary.ListTracks(ctx, sourceID)
	if err != nil {
		return fail("Failed to fetch source tracks", err)
	}

	digest := Digest(tracks)
	result.Digest = digest

	var previous string
	if _, err := m.store.Get(ctx, SnapshotKey(group.ID), &previous); err != nil {
		return fail("Failed to read snapshot", err)
	}
	changed := previous != digest
	sendProgress(m.progress, compareDigestUpdate(step, total, group, changed))
	if !changed {
		result.Status = models.RunUnchanged
		return result
	}

	logger.Info("Source changed", "tracks", len(tracks), "digest", digest[:12])
	result.Targets = m.syncTargets(ctx, group, tracks, logger)
	if err := ctx.Err(); err != nil {
		return fail("Sweep cancelled", err)
	}

	failed, attempted := 0, 0
	for _, t := range result.Targets {
		switch t.Status {
		case TargetFailed:
			failed++
			attempted++
		case TargetReplaced:
			attempted++
		}
	}

	switch {
	case failed == 0:
		result.Status = models.RunSynced
	case failed == attempted:
		result.Status = models.RunFailed
		result.Message = fmt.Sprintf("%d target(s) failed", failed)
	default:
		result.Status = models.RunPartial
		result.Message = fmt.Sprintf("%d of %d target(s) failed", failed, attempted)
	}

	if failed > 0 && m.retryFailed {
		logger.Warn("Snapshot withheld so failed targets are retried", "failed", failed)
		return result
	}

	if err := m.store.Set(ctx, SnapshotKey(group.ID), digest); err != nil {
		return fail("Failed to save snapshot", err)
	}
	sendProgress(m.progress, saveSnapshotUpdate(group, digest))
	return result
}

// syncTargets updates every mirror, at most maxParallel at a time. A failing target never cancels its siblings.
func (m *SyncManager) syncTargets(ctx context.Context, group models.SyncGroup, tracks []models.Track, logger *log.Logger) []TargetResult {
	targets := group.Targets()
	results := make([]TargetResult, len(targets))

	var g errgroup.Group
	g.SetLimit(m.maxParallel)
	for i, target := range targets {
		g.Go(func() error {
			tlog := logger.With("service", target.Service, "playlist", target.PlaylistID)
			defer func() {
				if r := recover(); r != nil {
					tlog.Error("Target update panicked", "panic", r)
					err := fmt.Errorf("%w: panic: %v", ErrTargetPanic, r)
					results[i] = TargetResult{
						Service:    target.Service,
						PlaylistID: target.PlaylistID,
						Total:      len(tracks),
						Status:     TargetFailed,
						Err:        err,
						Message:    err.Error(),
					}
				}
				sendProgress(m.progress, replaceTargetUpdate(results[i]))
			}()
			results[i] = m.syncTarget(ctx, target, tracks, tlog)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *SyncManager) syncTarget(ctx context.Context, target models.Target, tracks []models.Track, logger *log.Logger) TargetResult {
	result := TargetResult{Service: target.Service, PlaylistID: target.PlaylistID, Total: len(tracks)}

	conn, err := m.connectors.Get(target.Service)
	if err != nil {
		result.Status = TargetSkipped
		result.Message = "no connector"
		return result
	}
	if !conn.TokenReady(ctx) {
		result.Status = TargetSkipped
		result.Message = "not authenticated"
		return result
	}

	matched := make([]models.Track, 0, len(tracks))
	for i, track := range tracks {
		sendProgress(m.progress, searchTracksUpdate(i+1, len(tracks), target.Service, &track))
		found, err := conn.SearchTrack(ctx, track)
		if err != nil {
			logger.Error("Track search failed, leaving mirror untouched", "title", track.Title, "error", err)
			result.Status = TargetFailed
			result.Err = err
			result.Message = describeError(err)
			result.Matched = len(matched)
			return result
		}
		if found == nil {
			logger.Debug("No match", "title", track.Title, "artist", track.Artist())
			continue
		}
		matched = append(matched, *found)
	}

	// Searches fail fast once ctx is done; replacing now would truncate the mirror.
	if err := ctx.Err(); err != nil {
		result.Status = TargetFailed
		result.Err = err
		result.Message = err.Error()
		return result
	}

	result.Matched = len(matched)
	if err := conn.ReplaceTracks(ctx, target.PlaylistID, matched); err != nil {
		logger.Error("Failed to replace tracks", "error", err)
		result.Status = TargetFailed
		result.Err = err
		result.Message = describeError(err)
		return result
	}

	logger.Info("Mirror updated", "matched", len(matched), "total", len(tracks))
	result.Status = TargetReplaced
	return result
}

func (m *SyncManager) record(ctx context.Context, result GroupResult, logger *log.Logger) {
	if m.recorder == nil {
		return
	}
	run := models.SyncRun{
		GroupID:       result.GroupID,
		Status:        result.Status,
		Digest:        result.Digest,
		Targets:       len(result.Targets),
		FailedTargets: result.FailedTargets(),
		Message:       result.Message,
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
	}
	if err := m.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("Failed to record sync run", "error", err)
	}
}

// describeError prefixes connector errors with their taxonomy.
func describeError(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		return "authentication: " + err.Error()
	case errors.Is(err, shared.ErrTransient):
		return "transient: " + err.Error()
	default:
		return err.Error()
	}
}
