package models

import (
	"fmt"
	"time"
)

// Direction is the kind of a vote marker.
type Direction string

const (
	Like    Direction = "like"
	Dislike Direction = "dislike"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Like || d == Dislike
}

// Track is a Spotify catalog track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	ArtworkURL string   `json:"artwork_url,omitempty"`
	URI        string   `json:"uri,omitempty"`
}

// QueuedTrack is a track in a party queue.
//
// Likes and Dislikes mirror the number of vote markers and are maintained on every vote change.
type QueuedTrack struct {
	PartyID  string `json:"party_id"`
	Track    `json:"track"`
	AddedBy  string    `json:"added_by"`
	Likes    int       `json:"likes"`
	Dislikes int       `json:"dislikes"`
	AddedAt  time.Time `json:"added_at"`
}

// Validate checks the keys and counters of a queued track.
func (q *QueuedTrack) Validate() error {
	if q.PartyID == "" {
		return fmt.Errorf("queued track party id is required")
	}
	if q.ID == "" {
		return fmt.Errorf("queued track id is required")
	}
	if q.Name == "" {
		return fmt.Errorf("queued track name is required")
	}
	if q.Likes < 0 || q.Dislikes < 0 {
		return fmt.Errorf("queued track counters must not be negative")
	}
	return nil
}

// Vote is a marker that a user liked or disliked a queued track.
type Vote struct {
	PartyID   string
	TrackID   string
	UserID    string
	Direction Direction
	CreatedAt time.Time
}

// VoteState is a single user's markers on one track.
type VoteState struct {
	Up   bool `json:"up"`
	Down bool `json:"down"`
}

// ToggleUp returns the state after pressing the upvote control.
//
// Upvoting while downvoted switches to an upvote, pressing it again clears it.
func (v VoteState) ToggleUp() VoteState {
	switch {
	case v.Down:
		return VoteState{Up: true}
	case v.Up:
		return VoteState{}
	default:
		return VoteState{Up: true}
	}
}

// ToggleDown is the mirror of [VoteState.ToggleUp].
func (v VoteState) ToggleDown() VoteState {
	switch {
	case v.Up:
		return VoteState{Down: true}
	case v.Down:
		return VoteState{}
	default:
		return VoteState{Down: true}
	}
}

// Toggle applies the control for direction d.
func (v VoteState) Toggle(d Direction) VoteState {
	if d == Dislike {
		return v.ToggleDown()
	}
	return v.ToggleUp()
}
