package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// DefaultRecountWorkers is the number of concurrent marker counts in [Service.Recount].
const DefaultRecountWorkers = 4

// Store persists queued tracks and vote markers. Implemented by repositories.QueueRepository.
type Store interface {
	AddTrack(ctx context.Context, track *models.QueuedTrack) error
	GetTrack(ctx context.Context, partyID, trackID string) (*models.QueuedTrack, error)
	ListTracks(ctx context.Context, partyID string) ([]*models.QueuedTrack, error)
	ViewerVotes(ctx context.Context, partyID, userID string) (map[string]models.VoteState, error)
	SetVote(ctx context.Context, partyID, trackID, userID string, state models.VoteState) (models.VoteState, error)
	CountMarkers(ctx context.Context, partyID, trackID string) (likes, dislikes int, err error)
	SetCounters(ctx context.Context, partyID, trackID string, likes, dislikes int) error
}

// Notifier is told when a party queue changed.
type Notifier interface {
	Publish(partyID string)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(partyID string)

func (f NotifierFunc) Publish(partyID string) { f(partyID) }

// Correction is a track whose stored counters disagreed with its markers.
type Correction struct {
	TrackID         string `json:"track_id"`
	Name            string `json:"name"`
	StoredLikes     int    `json:"stored_likes"`
	StoredDislikes  int    `json:"stored_dislikes"`
	CountedLikes    int    `json:"counted_likes"`
	CountedDislikes int    `json:"counted_dislikes"`
}

// Service ranks queues and applies votes for all parties.
type Service struct {
	store    Store
	scorer   Scorer
	notifier Notifier
	workers  int
	logger   *log.Logger
}

// NewService creates a queue service. A nil scorer ranks by [Magnitude].
func NewService(store Store, scorer Scorer, logger *log.Logger) *Service {
	if scorer == nil {
		scorer = Magnitude
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		store:   store,
		scorer:  scorer,
		workers: DefaultRecountWorkers,
		logger:  shared.WithLogger(logger, "component", "queue"),
	}
}

// SetNotifier registers the receiver of queue-changed notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetWorkers sets the recount concurrency. Values below 1 are ignored.
func (s *Service) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// Notify publishes a queue-changed notification for partyID.
func (s *Service) Notify(partyID string) {
	if s.notifier != nil {
		s.notifier.Publish(partyID)
	}
}

// Snapshot returns the ranked queue of a party as seen by viewer.
func (s *Service) Snapshot(ctx context.Context, partyID, viewer string) ([]RankedTrack, error) {
	tracks, err := s.store.ListTracks(ctx, partyID)
	if err != nil {
		s.logger.Error("failed to read queue", "party", partyID, "error", err)
		return nil, err
	}

	votes, err := s.store.ViewerVotes(ctx, partyID, viewer)
	if err != nil {
		s.logger.Error("failed to read viewer votes", "party", partyID, "viewer", viewer, "error", err)
		return nil, err
	}

	return Rank(tracks, votes, s.scorer), nil
}

// AddTrack queues track for a party on behalf of addedBy.
func (s *Service) AddTrack(ctx context.Context, partyID, addedBy string, track models.Track) (*models.QueuedTrack, error) {
	if strings.TrimSpace(track.ID) == "" {
		return nil, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'track_id' parameter.")
	}

	queued := &models.QueuedTrack{PartyID: partyID, Track: track, AddedBy: addedBy}
	if err := s.store.AddTrack(ctx, queued); err != nil {
		s.logger.Error("failed to queue track", "party", partyID, "track", track.ID, "error", err)
		return nil, err
	}

	s.logger.Info("track queued", "party", partyID, "track", track.ID, "by", addedBy)
	s.Notify(partyID)
	return queued, nil
}

// ChangeVote sets or clears the like and dislike markers of userID on a track.
// up and down describe the desired final state and cannot both be set; markers and
// counters change in one transaction.
func (s *Service) ChangeVote(ctx context.Context, partyID, trackID, userID string, up, down bool) (models.VoteState, error) {
	if userID == "" {
		return models.VoteState{}, shared.NewCallableError(shared.CodeUnauthenticated, "A user id is required to vote.")
	}
	if trackID == "" {
		return models.VoteState{}, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'track_id' parameter.")
	}
	if up && down {
		return models.VoteState{}, shared.NewCallableError(shared.CodeInvalidArgument, "A track cannot be liked and disliked at once.")
	}

	state, err := s.store.SetVote(ctx, partyID, trackID, userID, models.VoteState{Up: up, Down: down})
	if err != nil {
		s.logger.Error("failed to change vote", "party", partyID, "track", trackID, "user", userID, "error", err)
		return models.VoteState{}, err
	}

	s.logger.Debug("vote changed", "party", partyID, "track", trackID, "user", userID, "up", up, "down", down)
	s.Notify(partyID)
	return state, nil
}

// Toggle presses the vote control for direction on behalf of userID and returns the new state.
func (s *Service) Toggle(ctx context.Context, partyID, trackID, userID string, direction models.Direction) (models.VoteState, error) {
	if !direction.Valid() {
		return models.VoteState{}, shared.NewCallableError(shared.CodeInvalidArgument, "Unknown vote direction %q.", direction)
	}

	votes, err := s.store.ViewerVotes(ctx, partyID, userID)
	if err != nil {
		s.logger.Error("failed to read viewer votes", "party", partyID, "user", userID, "error", err)
		return models.VoteState{}, err
	}

	next := votes[trackID].Toggle(direction)
	return s.ChangeVote(ctx, partyID, trackID, userID, next.Up, next.Down)
}

// Recount counts the markers of every track in a party with a bounded pool of
// workers and rewrites the counters that drifted. It returns the corrections made.
func (s *Service) Recount(ctx context.Context, partyID string) ([]Correction, error) {
	tracks, err := s.store.ListTracks(ctx, partyID)
	if err != nil {
		return nil, err
	}

	type result struct {
		track           *models.QueuedTrack
		likes, dislikes int
		err             error
	}

	jobs := make(chan *models.QueuedTrack)
	results := make(chan result, len(tracks))

	var wg sync.WaitGroup
	for range min(s.workers, max(len(tracks), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for track := range jobs {
				likes, dislikes, err := s.store.CountMarkers(ctx, partyID, track.ID)
				results <- result{track: track, likes: likes, dislikes: dislikes, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, track := range tracks {
			select {
			case jobs <- track:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var corrections []Correction
	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("failed to recount %s: %w", r.track.ID, r.err)
		}
		if r.likes == r.track.Likes && r.dislikes == r.track.Dislikes {
			continue
		}
		corrections = append(corrections, Correction{
			TrackID:         r.track.ID,
			Name:            r.track.Name,
			StoredLikes:     r.track.Likes,
			StoredDislikes:  r.track.Dislikes,
			CountedLikes:    r.likes,
			CountedDislikes: r.dislikes,
		})
	}

	sort.Slice(corrections, func(i, j int) bool { return corrections[i].TrackID < corrections[j].TrackID })

	for _, c := range corrections {
		if err := s.store.SetCounters(ctx, partyID, c.TrackID, c.CountedLikes, c.CountedDislikes); err != nil {
			return nil, err
		}
		s.logger.Warn("vote counters corrected", "party", partyID, "track", c.TrackID,
			"likes", c.CountedLikes, "dislikes", c.CountedDislikes)
	}

	if len(corrections) > 0 {
		s.Notify(partyID)
	}
	return corrections, nil
}
