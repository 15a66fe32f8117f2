package party

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/repositories"
	"github.com/desertthunder/multify/internal/shared"
	mt "github.com/desertthunder/multify/internal/testing"
)

func newTestService(t *testing.T) (*Service, *mt.MockSpotify, *repositories.PartyRepository) {
	t.Helper()
	repo := repositories.NewPartyRepository(mt.NewTestDB(t))
	spotify := mt.NewMockSpotify()
	svc := NewService(repo, spotify, log.New(io.Discard))
	return svc, spotify, repo
}

func TestCreateParty(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, spotify, repo := newTestService(t)
		svc.SetRand(func(int) int { return 2345 })

		result, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "Friday", SpotifyToken: "tok", Host: "host-uid"})
		if err != nil {
			t.Fatalf("failed to create party: %v", err)
		}

		if result.Code != "12345" || result.Name != "Friday" {
			t.Errorf("unexpected result %+v", result)
		}
		if result.PlaylistID != "playlist-1" {
			t.Errorf("expected playlist id to be kept, got %q", result.PlaylistID)
		}

		if len(spotify.Created) != 1 || spotify.Created[0] != "spotify-user/"+PlaylistName {
			t.Errorf("expected playlist created for /me user, got %v", spotify.Created)
		}

		party, err := repo.GetByCode("12345")
		if err != nil {
			t.Fatalf("party should be persisted: %v", err)
		}
		if party.Host() != "host-uid" || party.SpotifyUserID() != "spotify-user" {
			t.Errorf("unexpected persisted party host=%s user=%s", party.Host(), party.SpotifyUserID())
		}
	})

	t.Run("Uses supplied spotify id", func(t *testing.T) {
		svc, spotify, _ := newTestService(t)

		if _, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "n", SpotifyToken: "tok", SpotifyID: "given", Host: "h"}); err != nil {
			t.Fatalf("failed to create party: %v", err)
		}
		if spotify.CallCount() != 1 {
			t.Errorf("expected only the playlist call, got %d calls", spotify.CallCount())
		}
		if spotify.Created[0] != "given/"+PlaylistName {
			t.Errorf("expected playlist for given user, got %v", spotify.Created)
		}
	})

	t.Run("Codes are unique", func(t *testing.T) {
		svc, _, repo := newTestService(t)

		for range 5 {
			if _, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "n", SpotifyToken: "tok", Host: "h"}); err != nil {
				t.Fatalf("failed to create party: %v", err)
			}
		}

		codes, err := repo.ActiveCodes()
		if err != nil {
			t.Fatalf("failed to list codes: %v", err)
		}
		seen := map[string]bool{}
		for _, c := range codes {
			if seen[c] {
				t.Errorf("duplicate code %s", c)
			}
			seen[c] = true
		}
	})

	t.Run("Validation before any call", func(t *testing.T) {
		tests := []struct {
			name    string
			req     CreatePartyRequest
			code    shared.ErrorCode
			message string
		}{
			{"missing name", CreatePartyRequest{SpotifyToken: "tok", Host: "h"}, shared.CodeInvalidArgument, "Missing 'name' parameter."},
			{"blank name", CreatePartyRequest{Name: "   ", SpotifyToken: "tok", Host: "h"}, shared.CodeInvalidArgument, "Missing 'name' parameter."},
			{"missing token", CreatePartyRequest{Name: "n", Host: "h"}, shared.CodeInvalidArgument, "Missing 'spotify_token' parameter."},
			{"missing host", CreatePartyRequest{Name: "n", SpotifyToken: "tok"}, shared.CodeUnauthenticated, "The function must be called while authenticated."},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, spotify, repo := newTestService(t)

				_, err := svc.CreateParty(ctx, tt.req)
				var ce *shared.CallableError
				if !errors.As(err, &ce) {
					t.Fatalf("expected CallableError, got %v", err)
				}
				if ce.Code != tt.code || ce.Message != tt.message {
					t.Errorf("expected %s %q, got %s %q", tt.code, tt.message, ce.Code, ce.Message)
				}
				if spotify.CallCount() != 0 {
					t.Errorf("expected no Spotify calls, got %d", spotify.CallCount())
				}
				if codes, _ := repo.ActiveCodes(); len(codes) != 0 {
					t.Errorf("expected nothing persisted, got %v", codes)
				}
			})
		}
	})

	t.Run("Upstream failure", func(t *testing.T) {
		svc, spotify, repo := newTestService(t)
		spotify.Err = shared.UpstreamError(401, errors.New("token expired"))

		_, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "n", SpotifyToken: "tok", Host: "h"})
		var ce *shared.CallableError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CallableError, got %v", err)
		}
		if ce.UpstreamStatus != 401 || ce.Message != "Spotify error code: 401" {
			t.Errorf("unexpected upstream error %+v", ce)
		}
		if codes, _ := repo.ActiveCodes(); len(codes) != 0 {
			t.Errorf("expected nothing persisted, got %v", codes)
		}
	})
}

func TestLookupByCode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	svc.SetRand(func(int) int { return 0 })

	created, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "n", SpotifyToken: "tok", Host: "h"})
	if err != nil {
		t.Fatalf("failed to create party: %v", err)
	}

	t.Run("Found", func(t *testing.T) {
		party, err := svc.LookupByCode(ctx, " 10000 ")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if party.ID() != created.ID {
			t.Errorf("expected %s, got %s", created.ID, party.ID())
		}
	})

	t.Run("Not found", func(t *testing.T) {
		_, err := svc.LookupByCode(ctx, "99999")
		var ce *shared.CallableError
		if !errors.As(err, &ce) || ce.Code != shared.CodeNotFound || ce.Message != "Could not find party" {
			t.Errorf("expected not-found error, got %v", err)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			t.Error("expected error to match ErrNotFound")
		}
	})

	t.Run("Missing code", func(t *testing.T) {
		_, err := svc.LookupByCode(ctx, "")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid-argument, got %v", err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		if _, err := svc.Get(ctx, created.ID); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := svc.Get(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestEndParty(t *testing.T) {
	ctx := context.Background()

	t.Run("Releases the code", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		svc.SetRand(func(int) int { return 0 })

		first, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "first", SpotifyToken: "tok", Host: "h"})
		if err != nil {
			t.Fatalf("failed to create party: %v", err)
		}
		if err := svc.EndParty(ctx, first.ID, "h"); err != nil {
			t.Fatalf("failed to end party: %v", err)
		}

		if _, err := svc.LookupByCode(ctx, first.Code); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ended party to be gone, got %v", err)
		}

		second, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "second", SpotifyToken: "tok", Host: "h"})
		if err != nil {
			t.Fatalf("expected the released code to be reusable: %v", err)
		}
		if second.Code != first.Code {
			t.Errorf("expected code %s to be reused, got %s", first.Code, second.Code)
		}
	})

	t.Run("Only the host", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		created, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "n", SpotifyToken: "tok", Host: "h"})
		if err != nil {
			t.Fatalf("failed to create party: %v", err)
		}

		if err := svc.EndParty(ctx, created.ID, "guest"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected unauthenticated error, got %v", err)
		}
		if _, err := svc.Get(ctx, created.ID); err != nil {
			t.Errorf("party should still be active: %v", err)
		}
	})

	t.Run("Unknown party", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if err := svc.EndParty(ctx, "missing", ""); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestListParties(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, host := range []string{"alice", "bob", "alice"} {
		if _, err := svc.CreateParty(ctx, CreatePartyRequest{Name: host + " party", SpotifyToken: "tok", Host: host}); err != nil {
			t.Fatalf("failed to create party: %v", err)
		}
	}

	tests := []struct {
		name string
		host string
		want int
	}{
		{"All", "", 3},
		{"By host", "alice", 2},
		{"Unknown host", "carol", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parties, err := svc.List(ctx, tt.host)
			if err != nil {
				t.Fatalf("failed to list parties: %v", err)
			}
			if len(parties) != tt.want {
				t.Errorf("expected %d parties, got %d", tt.want, len(parties))
			}
		})
	}
}

func TestUpdateToken(t *testing.T) {
	ctx := context.Background()
	svc, _, repo := newTestService(t)

	created, err := svc.CreateParty(ctx, CreatePartyRequest{Name: "n", SpotifyToken: "old", Host: "h"})
	if err != nil {
		t.Fatalf("failed to create party: %v", err)
	}

	t.Run("Stores the new token", func(t *testing.T) {
		if _, err := svc.UpdateToken(ctx, created.ID, "fresh"); err != nil {
			t.Fatalf("failed to update token: %v", err)
		}

		party, err := repo.Get(created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if party.SpotifyToken() != "fresh" {
			t.Errorf("expected fresh token, got %q", party.SpotifyToken())
		}
	})

	t.Run("Missing token", func(t *testing.T) {
		if _, err := svc.UpdateToken(ctx, created.ID, ""); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid-argument, got %v", err)
		}
	})
}
