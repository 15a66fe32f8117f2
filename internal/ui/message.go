package ui

import (
	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/queue"
)

// queueFetchedMsg carries a fresh ranked queue, from a fetch or the live feed.
type queueFetchedMsg struct {
	tracks []queue.RankedTrack
	err    error
	live   bool
}

// voteDoneMsg reports the viewer's markers after a vote. prev holds the markers
// from before the vote, restored when err is set.
type voteDoneMsg struct {
	trackID string
	prev    models.VoteState
	state   models.VoteState
	err     error
}

// searchDoneMsg carries catalog search results.
type searchDoneMsg struct {
	query  string
	tracks []models.Track
	err    error
}

// trackAddedMsg reports the outcome of queueing a track.
type trackAddedMsg struct {
	track models.Track
	err   error
}

// feedClosedMsg ends the live subscription.
type feedClosedMsg struct {
	err error
}
