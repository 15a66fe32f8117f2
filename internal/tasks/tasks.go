// package tasks runs long party operations with progress reporting.
package tasks

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// PlaylistSource reads every track of a Spotify playlist. Implemented by services.SpotifyService.
type PlaylistSource interface {
	GetPlaylistTracks(ctx context.Context, accessToken, playlistID string) ([]models.Track, error)
}

// QueueWriter adds one track to a party queue, reporting false when it was already queued.
// Implemented by repositories.ImportAdapter.
type QueueWriter interface {
	Enqueue(ctx context.Context, partyID, addedBy string, track models.Track) (bool, error)
}

// Notifier is told once when an import changed a queue. Implemented by queue.Service.
type Notifier interface {
	Notify(partyID string)
}

// ImportEngine copies playlists into party queues.
type ImportEngine struct {
	source   PlaylistSource
	writer   QueueWriter
	notifier Notifier
	logger   *log.Logger
}

// NewImportEngine creates an engine. notifier may be nil.
func NewImportEngine(source PlaylistSource, writer QueueWriter, notifier Notifier, logger *log.Logger) *ImportEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ImportEngine{
		source:   source,
		writer:   writer,
		notifier: notifier,
		logger:   shared.WithLogger(logger, "component", "import"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *ImportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
