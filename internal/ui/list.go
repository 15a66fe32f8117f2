package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/multify/internal/formatter"
	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/queue"
)

var (
	_ list.Item = queueItem{}
	_ list.Item = trackItem{}
)

// queueItem wraps [queue.RankedTrack] to implement [list.Item].
type queueItem struct {
	rank  int
	track queue.RankedTrack
}

func (i queueItem) FilterValue() string { return i.track.Name }
func (i queueItem) Title() string {
	title := fmt.Sprintf("%d. %s", i.rank, i.track.Name)
	switch {
	case i.track.Liked:
		title += " " + styles.ok.Render("▲")
	case i.track.Disliked:
		title += " " + styles.err.Render("▼")
	}
	return title
}
func (i queueItem) Description() string {
	return fmt.Sprintf("%s • score %d (+%d/-%d)",
		formatter.Artists(i.track.Artists), i.track.Score, i.track.Likes, i.track.Dislikes)
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := formatter.Artists(i.track.Artists)
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}
