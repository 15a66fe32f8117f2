package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/queue"
	"github.com/desertthunder/multify/internal/shared"
)

// Parties looks up parties. Implemented by party.Service.
type Parties interface {
	LookupByCode(ctx context.Context, code string) (*models.Party, error)
	Get(ctx context.Context, id string) (*models.Party, error)
}

// Queue reads and mutates party queues. Implemented by queue.Service.
type Queue interface {
	Snapshot(ctx context.Context, partyID, viewer string) ([]queue.RankedTrack, error)
	AddTrack(ctx context.Context, partyID, addedBy string, track models.Track) (*models.QueuedTrack, error)
	ChangeVote(ctx context.Context, partyID, trackID, userID string, up, down bool) (models.VoteState, error)
}

// TrackLookup resolves catalog ids with the party host's token. Implemented by services.SpotifyService.
type TrackLookup interface {
	GetTrack(ctx context.Context, accessToken, trackID string) (models.Track, error)
}

// Live streams queue snapshots to websocket clients. Implemented by live.Hub.
type Live interface {
	Serve(w http.ResponseWriter, r *http.Request, partyID, viewer string) error
}

const (
	routeLookup = "GET /codes/{code}"
	routeQueue  = "GET /parties/{id}/queue"
	routeAdd    = "POST /parties/{id}/queue"
	routeVote   = "PUT /parties/{id}/queue/{trackId}/vote"
	routeLive   = "GET /parties/{id}/live"
)

// PartyHandler serves party lookup, queue, vote and live-update endpoints.
type PartyHandler struct {
	parties Parties
	queue   Queue
	tracks  TrackLookup
	live    Live
	logger  *log.Logger
}

// NewPartyHandler creates the party endpoints. tracks and live may be nil, which
// disables adding tracks by id and live updates respectively.
func NewPartyHandler(parties Parties, q Queue, tracks TrackLookup, live Live, logger *log.Logger) *PartyHandler {
	return &PartyHandler{
		parties: parties,
		queue:   q,
		tracks:  tracks,
		live:    live,
		logger:  shared.WithLogger(logger, "component", "parties"),
	}
}

func (h *PartyHandler) Routes() []string {
	return []string{routeLookup, routeQueue, routeAdd, routeVote, routeLive}
}

func (h *PartyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeLookup:
		h.lookup(w, r)
	case routeQueue:
		h.snapshot(w, r)
	case routeAdd:
		h.add(w, r)
	case routeVote:
		h.vote(w, r)
	case routeLive:
		h.subscribe(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *PartyHandler) lookup(w http.ResponseWriter, r *http.Request) {
	p, err := h.parties.LookupByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": p.ID()})
}

func (h *PartyHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	if _, err := h.parties.Get(r.Context(), partyID); err != nil {
		writeError(w, err)
		return
	}

	tracks, err := h.queue.Snapshot(r.Context(), partyID, viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []queue.RankedTrack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"party_id": partyID, "tracks": tracks})
}

type addTrackRequest struct {
	TrackID string        `json:"track_id"`
	Track   *models.Track `json:"track"`
}

func (h *PartyHandler) add(w http.ResponseWriter, r *http.Request) {
	user := viewer(r)
	if user == "" {
		writeError(w, shared.NewCallableError(shared.CodeUnauthenticated, "A user id is required to add tracks."))
		return
	}

	var req addTrackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.parties.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var track models.Track
	switch {
	case req.Track != nil:
		track = *req.Track
	case strings.TrimSpace(req.TrackID) == "":
		writeError(w, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'track_id' parameter."))
		return
	case h.tracks == nil:
		writeError(w, shared.NewCallableError(shared.CodeInvalidArgument, "Track metadata is required."))
		return
	default:
		if track, err = h.tracks.GetTrack(r.Context(), p.SpotifyToken(), req.TrackID); err != nil {
			writeError(w, err)
			return
		}
	}

	queued, err := h.queue.AddTrack(r.Context(), p.ID(), user, track)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, queued)
}

func (h *PartyHandler) vote(w http.ResponseWriter, r *http.Request) {
	var state models.VoteState
	if err := decodeBody(r, &state); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.queue.ChangeVote(r.Context(), r.PathValue("id"), r.PathValue("trackId"), viewer(r), state.Up, state.Down)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *PartyHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		writeError(w, shared.NewCallableError(shared.CodeNotFound, "Live updates are disabled."))
		return
	}

	partyID := r.PathValue("id")
	if _, err := h.parties.Get(r.Context(), partyID); err != nil {
		writeError(w, err)
		return
	}

	if err := h.live.Serve(w, r, partyID, viewer(r)); err != nil {
		h.logger.Debug("websocket upgrade failed", "party", partyID, "error", err)
	}
}
