package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

var _ models.Repository[*models.Party] = (*PartyRepository)(nil)

const partyColumns = `id, sequence, code, name, host, spotify_token, spotify_user_id, playlist_id, created_at, updated_at, deleted_at`

// PartyRepository implements models.Repository[*models.Party] for hosted parties.
//
// Handles party CRUD operations with soft delete support and code lookups.
type PartyRepository struct {
	db *sql.DB
}

// NewPartyRepository creates a new PartyRepository with the given database connection
func NewPartyRepository(db *sql.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// Create inserts a new party into the database with generated ID and sequence.
//
// A code already held by another active party yields [shared.ErrConflict].
func (r *PartyRepository) Create(party *models.Party) error {
	sequence, err := NextSequence(r.db, "parties")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	party.SetID(id)
	party.SetSequence(sequence)

	if err := party.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO parties (id, sequence, code, name, host, spotify_token, spotify_user_id, playlist_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		party.Code(),
		party.Name(),
		party.Host(),
		party.SpotifyToken(),
		party.SpotifyUserID(),
		party.PlaylistID(),
		party.CreatedAt(),
		party.UpdatedAt(),
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: party code %s is already in use", shared.ErrConflict, party.Code())
	}
	if err != nil {
		return fmt.Errorf("failed to insert party: %w", err)
	}

	return nil
}

// Get retrieves a party by ID, excluding soft-deleted parties
func (r *PartyRepository) Get(id string) (*models.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE id = ? AND deleted_at IS NULL`
	return scanParty(r.db.QueryRow(query, id))
}

// GetByCode retrieves the active party holding code
func (r *PartyRepository) GetByCode(code string) (*models.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE code = ? AND deleted_at IS NULL`
	return scanParty(r.db.QueryRow(query, code))
}

// ActiveCodes returns the codes of every active party.
func (r *PartyRepository) ActiveCodes() ([]string, error) {
	rows, err := r.db.Query(`SELECT code FROM parties WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query party codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan party code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return codes, nil
}

// Update modifies the mutable fields of an existing party
func (r *PartyRepository) Update(party *models.Party) error {
	if err := party.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	party.SetUpdatedAt(now)

	query := `
		UPDATE parties
		SET name = ?, spotify_token = ?, spotify_user_id = ?, playlist_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		party.Name(),
		party.SpotifyToken(),
		party.SpotifyUserID(),
		party.PlaylistID(),
		now,
		party.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update party: %w", err)
	}

	return expectOneRow(result, party.ID())
}

// Delete soft-deletes a party by ID, releasing its code
func (r *PartyRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE parties SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete party: %w", err)
	}

	return expectOneRow(result, id)
}

// List retrieves all parties matching the given criteria, excluding soft-deleted parties.
//
// Supported criteria are "host" and "code".
func (r *PartyRepository) List(criteria map[string]any) ([]*models.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE deleted_at IS NULL`
	args := []any{}

	if host, ok := criteria["host"].(string); ok && host != "" {
		query += " AND host = ?"
		args = append(args, host)
	}

	if code, ok := criteria["code"].(string); ok && code != "" {
		query += " AND code = ?"
		args = append(args, code)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	var parties []*models.Party
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return parties, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanParty scans a single row from either [sql.Row] or [sql.Rows] into a [models.Party]
func scanParty(row scanner) (*models.Party, error) {
	var (
		id            string
		sequence      int
		code          string
		name          string
		host          string
		spotifyToken  string
		spotifyUserID string
		playlistID    string
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &code, &name, &host, &spotifyToken, &spotifyUserID, &playlistID, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan party: %w", err)
	}

	party := models.NewParty(sequence, code, name, host, spotifyToken)
	party.SetID(id)
	party.SetSpotifyUserID(spotifyUserID)
	party.SetPlaylistID(playlistID)
	party.SetCreatedAt(createdAt)
	party.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		party.SetDeletedAt(&deletedAt.Time)
	}

	return party, nil
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPartyNotFound, id)
	}
	return nil
}
