package tasks

import (
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
)

// ProgressUpdate represents a progress event during a sweep.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Sweep phase enumeration
type Phase int

const (
	LoadGroups Phase = iota
	FetchSource
	CompareDigest
	SearchTracks
	ReplaceTarget
	SaveSnapshot
	GroupDone
	SweepDone
)

func (p Phase) String() string {
	switch p {
	case LoadGroups:
		return "load_groups"
	case FetchSource:
		return "fetch_source"
	case CompareDigest:
		return "compare_digest"
	case SearchTracks:
		return "search_tracks"
	case ReplaceTarget:
		return "replace_target"
	case SaveSnapshot:
		return "save_snapshot"
	case GroupDone:
		return "group_done"
	case SweepDone:
		return "sweep_done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func loadGroupsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadGroups,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d sync group(s)", total),
	}
}

func fetchSourceUpdate(step, total int, group models.SyncGroup) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s source playlist for %s...", step, total, group.PrimaryService.DisplayName(), group.Name),
	}
}

func compareDigestUpdate(step, total int, group models.SyncGroup, changed bool) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s unchanged", step, total, group.Name)
	if changed {
		msg = fmt.Sprintf("[%d/%d] %s changed, updating mirrors", step, total, group.Name)
	}
	return ProgressUpdate{
		Phase:   CompareDigest,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func searchTracksUpdate(step, total int, service models.ServiceType, tr *models.Track) ProgressUpdate {
	if tr == nil {
		return ProgressUpdate{
			Phase:   SearchTracks,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("Searching for tracks on %s...", service.DisplayName()),
		}
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s - %s", step, total, service.DisplayName(), tr.Artist(), tr.Title),
	}
}

func replaceTargetUpdate(target TargetResult) ProgressUpdate {
	var msg string
	switch target.Status {
	case TargetReplaced:
		msg = fmt.Sprintf("✓ %s: %d/%d tracks", target.Service.DisplayName(), target.Matched, target.Total)
	case TargetFailed:
		msg = fmt.Sprintf("✗ %s: %s", target.Service.DisplayName(), target.Message)
	default:
		msg = fmt.Sprintf("- %s: %s", target.Service.DisplayName(), target.Message)
	}
	return ProgressUpdate{
		Phase:   ReplaceTarget,
		Step:    target.Matched,
		Total:   target.Total,
		Message: msg,
		Data:    target,
	}
}

func saveSnapshotUpdate(group models.SyncGroup, digest string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveSnapshot,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved snapshot for %s (%.12s)", group.Name, digest),
	}
}

func groupDoneUpdate(step, total int, result GroupResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   GroupDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, result.GroupName, result.Status),
		Data:    result,
	}
}

func sweepDoneUpdate(result SweepResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SweepDone,
		Step:    len(result.Groups),
		Total:   len(result.Groups),
		Message: result.Summary(),
		Data:    result,
	}
}
