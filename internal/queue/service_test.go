package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/repositories"
	"github.com/desertthunder/multify/internal/shared"
	mt "github.com/desertthunder/multify/internal/testing"
)

type recorder struct {
	mu      sync.Mutex
	parties []string
}

func (r *recorder) Publish(partyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parties = append(r.parties, partyID)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parties)
}

type fixture struct {
	svc     *Service
	repo    *repositories.QueueRepository
	partyID string
	events  *recorder
}

func setup(t *testing.T, trackIDs ...string) fixture {
	t.Helper()
	ctx := context.Background()
	db := mt.NewTestDB(t)

	party := models.NewParty(0, "12345", "Party", "host", "token")
	if err := repositories.NewPartyRepository(db).Create(party); err != nil {
		t.Fatalf("failed to create party: %v", err)
	}

	repo := repositories.NewQueueRepository(db)
	svc := NewService(repo, Magnitude, log.New(io.Discard))
	events := &recorder{}
	svc.SetNotifier(events)

	for _, id := range trackIDs {
		if _, err := svc.AddTrack(ctx, party.ID(), "host", models.Track{ID: id, Name: "Song " + id}); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}

	return fixture{svc: svc, repo: repo, partyID: party.ID(), events: events}
}

func TestChangeVote(t *testing.T) {
	ctx := context.Background()

	t.Run("none to up", func(t *testing.T) {
		f := setup(t, "t1")

		state, err := f.svc.ChangeVote(ctx, f.partyID, "t1", "alice", true, false)
		if err != nil {
			t.Fatalf("failed to vote: %v", err)
		}
		if state != (models.VoteState{Up: true}) {
			t.Errorf("unexpected state %+v", state)
		}

		likes, dislikes, _ := f.repo.CountMarkers(ctx, f.partyID, "t1")
		if likes != 1 || dislikes != 0 {
			t.Errorf("expected one like marker and no dislike, got %d/%d", likes, dislikes)
		}
	})

	t.Run("up to down", func(t *testing.T) {
		f := setup(t, "t1")

		if _, err := f.svc.ChangeVote(ctx, f.partyID, "t1", "alice", true, false); err != nil {
			t.Fatalf("failed to vote: %v", err)
		}
		if _, err := f.svc.ChangeVote(ctx, f.partyID, "t1", "alice", false, true); err != nil {
			t.Fatalf("failed to vote: %v", err)
		}

		likes, dislikes, _ := f.repo.CountMarkers(ctx, f.partyID, "t1")
		if likes != 0 || dislikes != 1 {
			t.Errorf("expected like removed and dislike created, got %d/%d", likes, dislikes)
		}
	})

	t.Run("like and dislike at once is rejected", func(t *testing.T) {
		f := setup(t, "t1")
		before := f.events.count()

		_, err := f.svc.ChangeVote(ctx, f.partyID, "t1", "alice", true, true)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument, got %v", err)
		}

		likes, dislikes, _ := f.repo.CountMarkers(ctx, f.partyID, "t1")
		if likes != 0 || dislikes != 0 {
			t.Errorf("expected no markers, got %d/%d", likes, dislikes)
		}

		tracks, err := f.svc.Snapshot(ctx, f.partyID, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if tracks[0].Score != 0 || tracks[0].Liked || tracks[0].Disliked {
			t.Errorf("expected untouched track, got %+v", tracks[0])
		}
		if f.events.count() != before {
			t.Error("rejected vote should not notify")
		}
	})

	t.Run("publishes", func(t *testing.T) {
		f := setup(t, "t1")
		before := f.events.count()

		if _, err := f.svc.ChangeVote(ctx, f.partyID, "t1", "alice", true, false); err != nil {
			t.Fatalf("failed to vote: %v", err)
		}
		if f.events.count() != before+1 {
			t.Errorf("expected one notification, got %d", f.events.count()-before)
		}
	})

	t.Run("errors are returned", func(t *testing.T) {
		f := setup(t)
		before := f.events.count()

		_, err := f.svc.ChangeVote(ctx, f.partyID, "missing", "alice", true, false)
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if f.events.count() != before {
			t.Error("failed mutation should not notify")
		}

		if _, err := f.svc.ChangeVote(ctx, f.partyID, "t1", "", true, false); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected unauthenticated error, got %v", err)
		}
	})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "t1")

	steps := []struct {
		direction models.Direction
		want      models.VoteState
	}{
		{models.Like, models.VoteState{Up: true}},
		{models.Dislike, models.VoteState{Down: true}},
		{models.Like, models.VoteState{Up: true}},
		{models.Like, models.VoteState{}},
		{models.Dislike, models.VoteState{Down: true}},
		{models.Dislike, models.VoteState{}},
	}

	for i, step := range steps {
		got, err := f.svc.Toggle(ctx, f.partyID, "t1", "alice", step.direction)
		if err != nil {
			t.Fatalf("step %d: toggle failed: %v", i, err)
		}
		if got != step.want {
			t.Errorf("step %d: toggle %s = %+v, want %+v", i, step.direction, got, step.want)
		}

		track, err := f.repo.GetTrack(ctx, f.partyID, "t1")
		if err != nil {
			t.Fatalf("step %d: failed to read track: %v", i, err)
		}
		if track.Likes != boolToInt(step.want.Up) || track.Dislikes != boolToInt(step.want.Down) {
			t.Errorf("step %d: counters %d/%d do not match state %+v", i, track.Likes, track.Dislikes, step.want)
		}
	}

	if _, err := f.svc.Toggle(ctx, f.partyID, "t1", "alice", models.Direction("meh")); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected invalid-argument for unknown direction, got %v", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b", "c")

	votes := []struct {
		track, user string
		up, down    bool
	}{
		{"b", "alice", true, false},
		{"b", "bob", false, true},
		{"c", "alice", false, true},
	}
	for _, v := range votes {
		if _, err := f.svc.ChangeVote(ctx, f.partyID, v.track, v.user, v.up, v.down); err != nil {
			t.Fatalf("failed to vote: %v", err)
		}
	}

	snapshot, err := f.svc.Snapshot(ctx, f.partyID, "alice")
	if err != nil {
		t.Fatalf("failed to build snapshot: %v", err)
	}

	if got := ids(snapshot); !equal(got, []string{"b", "c", "a"}) {
		t.Errorf("unexpected order %v", got)
	}

	first := snapshot[0]
	if first.Score != 2 || !first.Liked || first.Disliked {
		t.Errorf("unexpected first entry %+v", first)
	}
	if !snapshot[1].Disliked || snapshot[1].Liked {
		t.Errorf("expected alice's dislike on c, got %+v", snapshot[1])
	}
	if snapshot[2].Liked || snapshot[2].Disliked {
		t.Errorf("expected no flags on a, got %+v", snapshot[2])
	}
}

func TestAddTrack(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "t1")

	if _, err := f.svc.AddTrack(ctx, f.partyID, "guest", models.Track{ID: "t1", Name: "again"}); !errors.Is(err, shared.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if _, err := f.svc.AddTrack(ctx, f.partyID, "guest", models.Track{Name: "no id"}); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected invalid-argument, got %v", err)
	}
}

func TestRecount(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "a", "b", "c", "d", "e")
	f.svc.SetWorkers(2)

	if _, err := f.svc.ChangeVote(ctx, f.partyID, "a", "alice", true, false); err != nil {
		t.Fatalf("failed to vote: %v", err)
	}
	if err := f.repo.SetCounters(ctx, f.partyID, "a", 5, 0); err != nil {
		t.Fatalf("failed to corrupt counters: %v", err)
	}
	if err := f.repo.SetCounters(ctx, f.partyID, "d", 0, 2); err != nil {
		t.Fatalf("failed to corrupt counters: %v", err)
	}

	corrections, err := f.svc.Recount(ctx, f.partyID)
	if err != nil {
		t.Fatalf("recount failed: %v", err)
	}

	if len(corrections) != 2 || corrections[0].TrackID != "a" || corrections[1].TrackID != "d" {
		t.Fatalf("unexpected corrections %+v", corrections)
	}
	if corrections[0].StoredLikes != 5 || corrections[0].CountedLikes != 1 {
		t.Errorf("unexpected correction %+v", corrections[0])
	}

	track, _ := f.repo.GetTrack(ctx, f.partyID, "d")
	if track.Dislikes != 0 {
		t.Errorf("expected dislikes rewritten to 0, got %d", track.Dislikes)
	}

	again, err := f.svc.Recount(ctx, f.partyID)
	if err != nil || len(again) != 0 {
		t.Errorf("expected clean second recount, got %v (%v)", again, err)
	}
}
