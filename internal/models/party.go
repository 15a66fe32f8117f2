package models

import (
	"fmt"
	"time"
)

// CodeLength is the number of digits in a party join code.
const CodeLength = 5

// Party is a hosted party. Guests join it by its numeric code.
type Party struct {
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
	deletedAt     *time.Time
}

// NewParty creates a Party with timestamps set to now. The id is assigned on persistence.
func NewParty(sequence int, code, name, host, spotifyToken string) *Party {
	now := time.Now().UTC()
	return &Party{
		sequence:     sequence,
		code:         code,
		name:         name,
		host:         host,
		spotifyToken: spotifyToken,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (p *Party) ID() string            { return p.id }
func (p *Party) Sequence() int         { return p.sequence }
func (p *Party) Code() string          { return p.code }
func (p *Party) Name() string          { return p.name }
func (p *Party) Host() string          { return p.host }
func (p *Party) SpotifyToken() string  { return p.spotifyToken }
func (p *Party) SpotifyUserID() string { return p.spotifyUserID }
func (p *Party) PlaylistID() string    { return p.playlistID }
func (p *Party) CreatedAt() time.Time  { return p.createdAt }
func (p *Party) UpdatedAt() time.Time  { return p.updatedAt }
func (p *Party) DeletedAt() *time.Time { return p.deletedAt }
func (p *Party) IsDeleted() bool       { return p.deletedAt != nil }

func (p *Party) SetID(id string)                 { p.id = id }
func (p *Party) SetSequence(sequence int)        { p.sequence = sequence }
func (p *Party) SetName(name string)             { p.name = name }
func (p *Party) SetSpotifyToken(token string)    { p.spotifyToken = token }
func (p *Party) SetSpotifyUserID(userID string)  { p.spotifyUserID = userID }
func (p *Party) SetPlaylistID(playlistID string) { p.playlistID = playlistID }
func (p *Party) SetCreatedAt(t time.Time)        { p.createdAt = t }
func (p *Party) SetUpdatedAt(t time.Time)        { p.updatedAt = t }
func (p *Party) SetDeletedAt(t *time.Time)       { p.deletedAt = t }

// Validate checks required fields and the code format.
func (p *Party) Validate() error {
	if p.id == "" {
		return fmt.Errorf("party id is required")
	}
	if !IsPartyCode(p.code) {
		return fmt.Errorf("party code must be %d digits, got %q", CodeLength, p.code)
	}
	if p.name == "" {
		return fmt.Errorf("party name is required")
	}
	if p.host == "" {
		return fmt.Errorf("party host is required")
	}
	if p.spotifyToken == "" {
		return fmt.Errorf("party spotify token is required")
	}
	return nil
}

// IsPartyCode reports whether s is a well-formed join code.
func IsPartyCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s[0] != '0'
}
