package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

const trackColumns = `party_id, track_id, name, artists, album, artwork_url, uri, added_by, likes, dislikes, added_at`

// QueueRepository persists the tracks queued for a party and the vote markers cast on them.
//
// Each track carries likes/dislikes counters that are kept in step with the markers
// inside the same transaction, so a snapshot never needs per-track marker reads.
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository with the given database connection
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// AddTrack queues a track. Zero counters and AddedAt are filled in.
//
// Returns [shared.ErrConflict] when the track is already queued and
// [shared.ErrPartyNotFound] when the party does not exist.
func (r *QueueRepository) AddTrack(ctx context.Context, track *models.QueuedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	if track.AddedAt.IsZero() {
		track.AddedAt = time.Now().UTC()
	}

	artists, err := json.Marshal(nonNil(track.Artists))
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	query := `
		INSERT INTO queue_tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		track.PartyID,
		track.ID,
		track.Name,
		string(artists),
		track.Album,
		track.ArtworkURL,
		track.URI,
		track.AddedBy,
		track.Likes,
		track.Dislikes,
		track.AddedAt,
	)
	switch {
	case isConstraintViolation(err):
		return fmt.Errorf("%w: track %s is already queued", shared.ErrConflict, track.ID)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %s", shared.ErrPartyNotFound, track.PartyID)
	case err != nil:
		return fmt.Errorf("failed to insert queued track: %w", err)
	}

	return nil
}

// GetTrack retrieves one queued track.
func (r *QueueRepository) GetTrack(ctx context.Context, partyID, trackID string) (*models.QueuedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM queue_tracks WHERE party_id = ? AND track_id = ?`
	return scanTrack(r.db.QueryRowContext(ctx, query, partyID, trackID))
}

// ListTracks returns every track queued for a party in insertion order.
func (r *QueueRepository) ListTracks(ctx context.Context, partyID string) ([]*models.QueuedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM queue_tracks WHERE party_id = ? ORDER BY added_at ASC, track_id ASC`

	rows, err := r.db.QueryContext(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.QueuedTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// ViewerVotes returns the markers userID holds in a party, keyed by track id.
// Tracks the user never voted on are absent.
func (r *QueueRepository) ViewerVotes(ctx context.Context, partyID, userID string) (map[string]models.VoteState, error) {
	votes := make(map[string]models.VoteState)
	if userID == "" {
		return votes, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT track_id, direction FROM votes WHERE party_id = ? AND user_id = ?`, partyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			trackID   string
			direction models.Direction
		)
		if err := rows.Scan(&trackID, &direction); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}

		state := votes[trackID]
		switch direction {
		case models.Like:
			state.Up = true
		case models.Dislike:
			state.Down = true
		}
		votes[trackID] = state
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return votes, nil
}

// SetVote makes userID's markers on a track match state and returns the stored state.
//
// Creating a marker that exists or removing one that does not is a no-op;
// counters only move when a marker row is actually inserted or deleted.
func (r *QueueRepository) SetVote(ctx context.Context, partyID, trackID, userID string, state models.VoteState) (models.VoteState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.VoteState{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM queue_tracks WHERE party_id = ? AND track_id = ?)`, partyID, trackID,
	).Scan(&exists)
	if err != nil {
		return models.VoteState{}, fmt.Errorf("failed to check queued track: %w", err)
	}
	if !exists {
		return models.VoteState{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}

	if err := setMarker(ctx, tx, partyID, trackID, userID, models.Like, state.Up); err != nil {
		return models.VoteState{}, err
	}
	if err := setMarker(ctx, tx, partyID, trackID, userID, models.Dislike, state.Down); err != nil {
		return models.VoteState{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.VoteState{}, fmt.Errorf("failed to commit vote: %w", err)
	}

	return state, nil
}

// setMarker inserts or removes one marker and moves the matching counter.
func setMarker(ctx context.Context, tx *sql.Tx, partyID, trackID, userID string, direction models.Direction, present bool) error {
	var (
		result sql.Result
		err    error
		delta  = 1
	)

	if present {
		result, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO votes (party_id, track_id, user_id, direction, created_at) VALUES (?, ?, ?, ?, ?)`,
			partyID, trackID, userID, direction, time.Now().UTC(),
		)
	} else {
		delta = -1
		result, err = tx.ExecContext(ctx,
			`DELETE FROM votes WHERE party_id = ? AND track_id = ? AND user_id = ? AND direction = ?`,
			partyID, trackID, userID, direction,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s marker: %w", direction, err)
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if changed == 0 {
		return nil
	}

	column := "likes"
	if direction == models.Dislike {
		column = "dislikes"
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE queue_tracks SET %[1]s = %[1]s + ? WHERE party_id = ? AND track_id = ?`, column),
		delta, partyID, trackID,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s counter: %w", column, err)
	}

	return nil
}

// CountMarkers counts the like and dislike markers of one track.
func (r *QueueRepository) CountMarkers(ctx context.Context, partyID, trackID string) (likes, dislikes int, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN direction = 'like' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN direction = 'dislike' THEN 1 ELSE 0 END), 0)
		FROM votes
		WHERE party_id = ? AND track_id = ?
	`

	if err := r.db.QueryRowContext(ctx, query, partyID, trackID).Scan(&likes, &dislikes); err != nil {
		return 0, 0, fmt.Errorf("failed to count markers: %w", err)
	}

	return likes, dislikes, nil
}

// SetCounters overwrites the counters of one track.
func (r *QueueRepository) SetCounters(ctx context.Context, partyID, trackID string, likes, dislikes int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE queue_tracks SET likes = ?, dislikes = ? WHERE party_id = ? AND track_id = ?`,
		likes, dislikes, partyID, trackID,
	)
	if err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}

	return nil
}

// scanTrack scans a single row from either [sql.Row] or [sql.Rows] into a [models.QueuedTrack]
func scanTrack(row scanner) (*models.QueuedTrack, error) {
	var (
		track   models.QueuedTrack
		artists string
	)

	err := row.Scan(
		&track.PartyID,
		&track.ID,
		&track.Name,
		&artists,
		&track.Album,
		&track.ArtworkURL,
		&track.URI,
		&track.AddedBy,
		&track.Likes,
		&track.Dislikes,
		&track.AddedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queued track: %w", err)
	}

	if err := json.Unmarshal([]byte(artists), &track.Artists); err != nil {
		return nil, fmt.Errorf("failed to decode artists of %s: %w", track.ID, err)
	}

	return &track, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
