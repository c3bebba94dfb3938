package pipeline

import (
	"fmt"

	"mixcard/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase enumerates the pipeline stages.
type Phase int

const (
	BuildPhase Phase = iota
	ShufflePhase
	SearchPhase
	DownloadPhase
	PublishPhase
)

func (p Phase) String() string {
	switch p {
	case BuildPhase:
		return "build"
	case ShufflePhase:
		return "shuffle"
	case SearchPhase:
		return "search"
	case DownloadPhase:
		return "download"
	case PublishPhase:
		return "publish"
	default:
		return ""
	}
}

func searchingUpdate(step, total int, item *models.SongItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchPhase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching: %s", step, total, item.Request.Raw),
	}
}

func matchedUpdate(step, total int, item *models.SongItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchPhase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, item.Selected.Label()),
		Data:    item,
	}
}

func noMatchUpdate(step, total int, item *models.SongItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchPhase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ No match: %s", step, total, item.Request.Raw),
		Data:    item,
	}
}

func fetchingUpdate(step, total int, item *models.SongItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadPhase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading: %s", step, total, item.Selected.Label()),
	}
}

func fetchedUpdate(step, total int, item *models.SongItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadPhase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, item.Selected.Label()),
		Data:    item,
	}
}

func fetchFailedUpdate(step, total int, item *models.SongItem, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadPhase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, item.Request.Raw, err),
		Data:    item,
	}
}
