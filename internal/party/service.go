package party

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// PlaylistName is the name of the Spotify playlist created for every party.
const PlaylistName = "Multify Playlist"

// Store persists parties. Implemented by repositories.PartyRepository.
type Store interface {
	Create(party *models.Party) error
	Get(id string) (*models.Party, error)
	GetByCode(code string) (*models.Party, error)
	ActiveCodes() ([]string, error)
	Update(party *models.Party) error
	Delete(id string) error
	List(criteria map[string]any) ([]*models.Party, error)
}

// Spotify is the part of the Spotify Web API used when creating a party.
type Spotify interface {
	CurrentUser(ctx context.Context, accessToken string) (models.SpotifyUser, error)
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (models.Playlist, error)
}

// CreatePartyRequest is the input of [Service.CreateParty].
type CreatePartyRequest struct {
	Name         string `json:"name"`
	SpotifyToken string `json:"spotify_token"`
	SpotifyID    string `json:"spotify_id,omitempty"`
	Host         string `json:"-"`
}

// CreatePartyResult is returned to the host after creation.
type CreatePartyResult struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	PlaylistID string `json:"playlist_id,omitempty"`
}

// Service creates, looks up and ends parties.
type Service struct {
	store   Store
	spotify Spotify
	logger  *log.Logger
	intn    func(int) int
}

// NewService creates a party service. A nil logger writes to stderr.
func NewService(store Store, spotify Spotify, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		store:   store,
		spotify: spotify,
		logger:  shared.WithLogger(logger, "component", "party"),
	}
}

// SetRand replaces the random source used for join codes.
func (s *Service) SetRand(intn func(int) int) {
	s.intn = intn
}

// CreateParty validates the request, then generates a join code and creates the
// host's Spotify playlist concurrently before persisting the party.
//
// Code uniqueness is checked against the codes read at the start; a party created
// concurrently with the same code makes the insert fail with [shared.ErrConflict].
func (s *Service) CreateParty(ctx context.Context, req CreatePartyRequest) (*CreatePartyResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'name' parameter.")
	}
	if req.SpotifyToken == "" {
		return nil, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'spotify_token' parameter.")
	}
	if req.Host == "" {
		return nil, shared.NewCallableError(shared.CodeUnauthenticated, "The function must be called while authenticated.")
	}

	var (
		wg          sync.WaitGroup
		code        string
		codeErr     error
		playlist    models.Playlist
		spotifyUser string
		playlistErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		codes, err := s.store.ActiveCodes()
		if err != nil {
			codeErr = err
			return
		}
		code, codeErr = GenerateCode(codes, s.intn)
	}()
	go func() {
		defer wg.Done()
		spotifyUser, playlist, playlistErr = s.createPlaylist(ctx, req)
	}()
	wg.Wait()

	if codeErr != nil {
		s.logger.Error("failed to generate party code", "error", codeErr)
		return nil, fmt.Errorf("failed to generate party code: %w", codeErr)
	}
	if playlistErr != nil {
		s.logger.Error("failed to create party playlist", "error", playlistErr)
		return nil, playlistErr
	}

	party := models.NewParty(0, code, req.Name, req.Host, req.SpotifyToken)
	party.SetSpotifyUserID(spotifyUser)
	party.SetPlaylistID(playlist.ID)

	if err := s.store.Create(party); err != nil {
		s.logger.Error("failed to save party", "code", code, "error", err)
		return nil, err
	}

	s.logger.Info("party created", "id", party.ID(), "code", code, "host", req.Host)

	return &CreatePartyResult{
		ID:         party.ID(),
		Code:       party.Code(),
		Name:       party.Name(),
		PlaylistID: party.PlaylistID(),
	}, nil
}

func (s *Service) createPlaylist(ctx context.Context, req CreatePartyRequest) (string, models.Playlist, error) {
	userID := req.SpotifyID
	if userID == "" {
		user, err := s.spotify.CurrentUser(ctx, req.SpotifyToken)
		if err != nil {
			return "", models.Playlist{}, err
		}
		userID = user.ID
	}

	playlist, err := s.spotify.CreatePlaylist(ctx, req.SpotifyToken, userID, PlaylistName, "")
	if err != nil {
		return "", models.Playlist{}, err
	}
	return userID, playlist, nil
}

// LookupByCode resolves a join code to its active party.
func (s *Service) LookupByCode(ctx context.Context, code string) (*models.Party, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'code' parameter.")
	}

	party, err := s.store.GetByCode(code)
	if errors.Is(err, shared.ErrPartyNotFound) {
		return nil, &shared.CallableError{Code: shared.CodeNotFound, Message: "Could not find party", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return party, nil
}

// Get returns the active party with id.
func (s *Service) Get(ctx context.Context, id string) (*models.Party, error) {
	party, err := s.store.Get(id)
	if errors.Is(err, shared.ErrPartyNotFound) {
		return nil, &shared.CallableError{Code: shared.CodeNotFound, Message: "Could not find party", Err: err}
	}
	return party, err
}

// List returns the active parties, oldest first. A non-empty host keeps only that host's parties.
func (s *Service) List(ctx context.Context, host string) ([]*models.Party, error) {
	parties, err := s.store.List(map[string]any{"host": strings.TrimSpace(host)})
	if err != nil {
		s.logger.Error("failed to list parties", "host", host, "error", err)
		return nil, err
	}
	return parties, nil
}

// EndParty soft-deletes the party with id, releasing its join code.
// A non-empty host must match the party's host.
func (s *Service) EndParty(ctx context.Context, id, host string) error {
	party, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if host != "" && party.Host() != host {
		return shared.NewCallableError(shared.CodeUnauthenticated, "Only the host can end party %s.", party.Code())
	}

	if err := s.store.Delete(party.ID()); err != nil {
		s.logger.Error("failed to end party", "id", party.ID(), "error", err)
		return err
	}

	s.logger.Info("party ended", "id", party.ID(), "code", party.Code())
	return nil
}

// UpdateToken replaces the Spotify access token stored with a party, which is
// used for catalog lookups when guests add tracks by id.
func (s *Service) UpdateToken(ctx context.Context, id, accessToken string) (*models.Party, error) {
	if accessToken == "" {
		return nil, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'spotify_token' parameter.")
	}

	party, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	party.SetSpotifyToken(accessToken)
	if err := s.store.Update(party); err != nil {
		s.logger.Error("failed to update party token", "id", party.ID(), "error", err)
		return nil, err
	}

	s.logger.Info("party token updated", "id", party.ID())
	return party, nil
}
