package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// ImportAdapter implements tasks.QueueWriter using QueueRepository.
//
// Tracks that are already queued are reported as skipped rather than failed.
type ImportAdapter struct {
	repo *QueueRepository
}

// NewImportAdapter creates a new ImportAdapter with the given repository
func NewImportAdapter(repo *QueueRepository) *ImportAdapter {
	return &ImportAdapter{repo: repo}
}

// Enqueue adds track to the party queue. The bool result is false when the
// track was already queued.
func (a *ImportAdapter) Enqueue(ctx context.Context, partyID, addedBy string, track models.Track) (bool, error) {
	err := a.repo.AddTrack(ctx, &models.QueuedTrack{PartyID: partyID, Track: track, AddedBy: addedBy})
	if errors.Is(err, shared.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to enqueue track: %w", err)
	}
	return true, nil
}
