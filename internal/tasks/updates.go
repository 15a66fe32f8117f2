package tasks

import (
	"fmt"

	"github.com/desertthunder/multify/internal/models"
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

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	ImportTracks
	Publish
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case ImportTracks:
		return "import_tracks"
	case Publish:
		return "publish"
	default:
		return ""
	}
}

func fetchingSourceUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", playlistID),
	}
}

func foundTracksUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d tracks", total),
	}
}

func trackImportedUpdate(step, total int, res TrackImportResult) ProgressUpdate {
	var message string
	switch res.Status {
	case StatusAdded:
		message = fmt.Sprintf("[%d/%d] + %s", step, total, trackLabel(res.Track))
	case StatusSkipped:
		message = fmt.Sprintf("[%d/%d] = %s (already queued)", step, total, trackLabel(res.Track))
	default:
		message = fmt.Sprintf("[%d/%d] x %s: %v", step, total, trackLabel(res.Track), res.Error)
	}

	return ProgressUpdate{
		Phase:   ImportTracks,
		Step:    step,
		Total:   total,
		Message: message,
		Data:    res,
	}
}

func publishUpdate(partyID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Publish,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Queue of party %s updated", partyID),
	}
}

func trackLabel(t models.Track) string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artists[0], t.Name)
}
