package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// ImportStatus is the outcome of importing one track.
type ImportStatus string

const (
	StatusAdded   ImportStatus = "added"
	StatusSkipped ImportStatus = "skipped"
	StatusFailed  ImportStatus = "failed"
)

// ImportOpts contains configuration for a playlist import.
type ImportOpts struct {
	AccessToken string  // Spotify token used to read the playlist
	NumWorkers  int     // Concurrent queue writers (default: 5, max: 10)
	RateLimit   float64 // Tracks per second (default: 10)
}

// TrackImportResult is the outcome for one playlist track.
type TrackImportResult struct {
	Track  models.Track `json:"track"`
	Status ImportStatus `json:"status"`
	Error  error        `json:"-"`
}

// ImportResult summarises a playlist import.
type ImportResult struct {
	PartyID    string              `json:"party_id"`
	PlaylistID string              `json:"playlist_id"`
	Total      int                 `json:"total"`
	Added      int                 `json:"added"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
	Results    []TrackImportResult `json:"results"`
}

// Import queues every track of a Spotify playlist into a party on behalf of addedBy.
//
// Tracks go through a rate-limited worker pool. Already queued tracks are skipped
// and write failures are counted without aborting the import. One queue change is
// published at the end when anything was added.
func (e *ImportEngine) Import(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	partyID, playlistID, addedBy string,
	opts ImportOpts,
) (*ImportResult, error) {
	if e.source == nil || e.writer == nil {
		return nil, fmt.Errorf("%w: import engine not initialized", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(addedBy) == "" {
		return nil, fmt.Errorf("%w: a user is required to queue tracks", shared.ErrNotAuthenticated)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10.0
	}

	e.sendProgress(prog, fetchingSourceUpdate(playlistID))
	tracks, err := e.source.GetPlaylistTracks(ctx, opts.AccessToken, playlistID)
	if err != nil {
		e.logger.Error("failed to read playlist", "playlist", playlistID, "error", err)
		return nil, err
	}
	e.sendProgress(prog, foundTracksUpdate(len(tracks)))

	result := &ImportResult{
		PartyID:    partyID,
		PlaylistID: playlistID,
		Total:      len(tracks),
		Results:    make([]TrackImportResult, 0, len(tracks)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan models.Track, len(tracks))
	results := make(chan TrackImportResult, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.importWorker(ctx, &wg, jobs, results, partyID, addedBy)
	}

	var dispatchErr error
	go func() {
		defer close(jobs)
		for _, track := range tracks {
			if err := limiter.Wait(ctx); err != nil {
				dispatchErr = err
				return
			}
			jobs <- track
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch res.Status {
		case StatusAdded:
			result.Added++
		case StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		e.sendProgress(prog, trackImportedUpdate(completed, len(tracks), res))
	}

	if result.Added > 0 && e.notifier != nil {
		e.notifier.Notify(partyID)
		e.sendProgress(prog, publishUpdate(partyID))
	}

	e.logger.Info("playlist imported", "party", partyID, "playlist", playlistID,
		"added", result.Added, "skipped", result.Skipped, "failed", result.Failed)

	if dispatchErr != nil {
		return result, fmt.Errorf("import interrupted after %d of %d tracks: %w", completed, len(tracks), dispatchErr)
	}
	return result, nil
}

// importWorker is a worker goroutine that queues tracks from the jobs channel.
func (e *ImportEngine) importWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan models.Track,
	results chan<- TrackImportResult,
	partyID, addedBy string,
) {
	defer wg.Done()

	for track := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		added, err := e.writer.Enqueue(ctx, partyID, addedBy, track)
		switch {
		case err != nil:
			e.logger.Warn("failed to queue track", "party", partyID, "track", track.ID, "error", err)
			results <- TrackImportResult{Track: track, Status: StatusFailed, Error: err}
		case added:
			results <- TrackImportResult{Track: track, Status: StatusAdded}
		default:
			results <- TrackImportResult{Track: track, Status: StatusSkipped}
		}
	}
}
