package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/queue"
)

type fakeSnapshotter struct {
	mu     sync.Mutex
	tracks map[string][]queue.RankedTrack
	calls  int
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context, partyID, viewer string) ([]queue.RankedTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	out := []queue.RankedTrack{}
	for _, t := range f.tracks[partyID] {
		t.Liked = t.AddedBy == viewer
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeSnapshotter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSnapshotter) set(partyID string, tracks ...queue.RankedTrack) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks[partyID] = tracks
}

// versionSnapshotter reports the current version as the score of a single track.
// When held is set, the next call reads the version, signals entered and waits for held to close.
type versionSnapshotter struct {
	mu      sync.Mutex
	version int
	held    chan struct{}
	entered chan struct{}
}

func (v *versionSnapshotter) Snapshot(ctx context.Context, partyID, viewer string) ([]queue.RankedTrack, error) {
	v.mu.Lock()
	version, held, entered := v.version, v.held, v.entered
	v.held, v.entered = nil, nil
	v.mu.Unlock()

	if held != nil {
		close(entered)
		<-held
	}
	return []queue.RankedTrack{ranked("v", "", version)}, nil
}

func (v *versionSnapshotter) bump(hold bool) (entered, held chan struct{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version++
	if hold {
		v.entered, v.held = make(chan struct{}), make(chan struct{})
	}
	return v.entered, v.held
}

func newTestHub(t *testing.T) (*Hub, *fakeSnapshotter, *httptest.Server) {
	t.Helper()

	snap := &fakeSnapshotter{tracks: map[string][]queue.RankedTrack{}}
	hub, server := newHubServer(t, snap)
	return hub, snap, server
}

func newHubServer(t *testing.T, snap Snapshotter) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(snap, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if err := hub.Serve(w, r, parts[0], r.URL.Query().Get("viewer")); err != nil {
			t.Logf("serve failed: %v", err)
		}
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return hub, server
}

func wsURL(server *httptest.Server, partyID, viewer string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/" + partyID + "?viewer=" + viewer
}

func subscribe(t *testing.T, server *httptest.Server, partyID, viewer string) *Subscription {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub, err := Subscribe(ctx, wsURL(server, partyID, viewer), nil)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return sub
}

func waitForClients(t *testing.T, hub *Hub, partyID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients(partyID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.Clients(partyID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func ranked(id, addedBy string, likes int) queue.RankedTrack {
	return queue.RankedTrack{Track: models.Track{ID: id, Name: id}, AddedBy: addedBy, Likes: likes, Score: likes}
}

func TestHub(t *testing.T) {
	t.Run("Initial Snapshot On Join", func(t *testing.T) {
		_, snap, server := newTestHub(t)
		snap.set("p1", ranked("t1", "alice", 1))

		sub := subscribe(t, server, "p1", "alice")
		msg, err := sub.Next()
		if err != nil {
			t.Fatalf("expected snapshot, got %v", err)
		}

		if msg.Type != MessageQueue || msg.PartyID != "p1" {
			t.Errorf("unexpected message %+v", msg)
		}
		if len(msg.Tracks) != 1 || !msg.Tracks[0].Liked {
			t.Errorf("expected alice's personalised snapshot, got %+v", msg.Tracks)
		}
	})

	t.Run("Publish Personalises Per Viewer", func(t *testing.T) {
		hub, snap, server := newTestHub(t)

		alice := subscribe(t, server, "p1", "alice")
		bob := subscribe(t, server, "p1", "bob")
		if _, err := alice.Next(); err != nil {
			t.Fatal(err)
		}
		if _, err := bob.Next(); err != nil {
			t.Fatal(err)
		}
		waitForClients(t, hub, "p1", 2)

		snap.set("p1", ranked("t1", "alice", 3))
		hub.Publish("p1")

		a, err := alice.Next()
		if err != nil {
			t.Fatal(err)
		}
		b, err := bob.Next()
		if err != nil {
			t.Fatal(err)
		}

		if len(a.Tracks) != 1 || !a.Tracks[0].Liked {
			t.Errorf("expected alice to see her marker, got %+v", a.Tracks)
		}
		if len(b.Tracks) != 1 || b.Tracks[0].Liked {
			t.Errorf("expected bob not to see alice's marker, got %+v", b.Tracks)
		}
	})

	t.Run("Publish Is Scoped To Party", func(t *testing.T) {
		hub, snap, server := newTestHub(t)

		subscribe(t, server, "p1", "alice")
		waitForClients(t, hub, "p1", 1)
		before := snap.count()

		hub.Publish("p2")

		if snap.count() != before {
			t.Errorf("expected no snapshots for an empty party, got %d", snap.count()-before)
		}
	})

	t.Run("Overlapping Publishes Arrive In Order", func(t *testing.T) {
		snap := &versionSnapshotter{}
		hub, server := newHubServer(t, snap)

		sub := subscribe(t, server, "p1", "alice")
		if msg, err := sub.Next(); err != nil || msg.Tracks[0].Score != 0 {
			t.Fatalf("expected version 0 on join, got %+v, %v", msg, err)
		}
		waitForClients(t, hub, "p1", 1)

		var wg sync.WaitGroup
		entered, held := snap.bump(true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("p1")
		}()
		<-entered

		snap.bump(false)
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("p1")
		}()

		time.Sleep(50 * time.Millisecond)
		close(held)
		wg.Wait()

		var versions []int
		for range 2 {
			msg, err := sub.Next()
			if err != nil {
				t.Fatalf("expected snapshot, got %v", err)
			}
			versions = append(versions, msg.Tracks[0].Score)
		}

		if versions[0] != 1 || versions[1] != 2 {
			t.Errorf("expected versions [1 2], got %v", versions)
		}
	})

	t.Run("Unregister On Close", func(t *testing.T) {
		hub, _, server := newTestHub(t)

		ctx := context.Background()
		sub, err := Subscribe(ctx, wsURL(server, "p1", "alice"), nil)
		if err != nil {
			t.Fatal(err)
		}
		waitForClients(t, hub, "p1", 1)

		sub.Close()
		waitForClients(t, hub, "p1", 0)
	})

	t.Run("Rejects Plain HTTP", func(t *testing.T) {
		_, _, server := newTestHub(t)

		resp, err := http.Get(server.URL + "/p1")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}
