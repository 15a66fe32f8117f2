package queue

import (
	"fmt"
	"sort"

	"github.com/desertthunder/multify/internal/models"
)

// Scorer computes the ranking score of a track from its counters.
type Scorer func(likes, dislikes int) int

// Magnitude counts every vote, whatever its direction.
func Magnitude(likes, dislikes int) int { return likes + dislikes }

// Net subtracts dislikes from likes.
func Net(likes, dislikes int) int { return likes - dislikes }

// ScorerByName returns the scorer configured as "magnitude" or "net".
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case "", "magnitude":
		return Magnitude, nil
	case "net":
		return Net, nil
	default:
		return nil, fmt.Errorf("unknown queue score %q", name)
	}
}

// RankedTrack is a queued track as seen by one viewer.
type RankedTrack struct {
	models.Track
	AddedBy  string `json:"added_by"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Score    int    `json:"score"`
	Liked    bool   `json:"liked"`
	Disliked bool   `json:"disliked"`

	addedAt int64
}

// Rank orders tracks by descending score. Ties go to the track added first,
// then to the lower track id. viewerVotes may be nil.
func Rank(tracks []*models.QueuedTrack, viewerVotes map[string]models.VoteState, scorer Scorer) []RankedTrack {
	if scorer == nil {
		scorer = Magnitude
	}

	ranked := make([]RankedTrack, 0, len(tracks))
	for _, t := range tracks {
		vote := viewerVotes[t.ID]
		ranked = append(ranked, RankedTrack{
			Track:    t.Track,
			AddedBy:  t.AddedBy,
			Likes:    t.Likes,
			Dislikes: t.Dislikes,
			Score:    scorer(t.Likes, t.Dislikes),
			Liked:    vote.Up,
			Disliked: vote.Down,
			addedAt:  t.AddedAt.UnixNano(),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.addedAt != b.addedAt {
			return a.addedAt < b.addedAt
		}
		return a.ID < b.ID
	})

	return ranked
}
